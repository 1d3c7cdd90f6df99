// Command emulator dry-runs a single EVM call against a live host without
// submitting a transaction. It fetches any account it needs from the RPC
// endpoint, executes the call in memory, and prints a JSON report listing
// every account touched and which of them the host doesn't have yet — the
// list the caller must prime before the same call can run on-chain.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/emulator"
	"github.com/pandora-chain/evm-loader/handler"
	"github.com/pandora-chain/evm-loader/machine"
	"github.com/pandora-chain/evm-loader/state"
)

var (
	version   string
	gitCommit string
	release   = "dev"
	log       = ethlog.New()
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-commit%s", release, version, gitCommit)
	app.Name = "emulator"
	app.Usage = "dry-run an EVM call against a remote host"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "TOML config file (endpoint, program-id); CLI flags override it",
		},
		cli.StringFlag{
			Name:  "endpoint",
			Usage: "host JSON-RPC endpoint",
		},
		cli.StringFlag{
			Name:  "program-id",
			Usage: "base58 H-key of the loader program",
		},
		cli.StringFlag{
			Name:  "from",
			Usage: "hex E-addr of the caller",
		},
		cli.StringFlag{
			Name:  "to",
			Usage: "hex E-addr of the contract being called",
		},
		cli.StringFlag{
			Name:  "data",
			Usage: "hex-encoded calldata",
		},
		cli.StringFlag{
			Name:  "value",
			Value: "0",
			Usage: "decimal wei value attached to the call",
		},
		cli.Uint64Flag{
			Name:  "block-number",
			Usage: "block number the call observes",
		},
		cli.Uint64Flag{
			Name:  "block-timestamp",
			Usage: "block timestamp the call observes",
		},
		cli.IntFlag{
			Name:  "verbosity",
			Value: 3,
			Usage: "log verbosity (0-5)",
		},
	}
	app.Action = run
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	log.SetHandler(ethlog.LvlFilterHandler(ethlog.Lvl(ctx.Int("verbosity")), ethlog.StreamHandler(os.Stderr, ethlog.TerminalFormat(false))))

	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}

	from, err := parseEAddr(ctx.String("from"))
	if err != nil {
		return errors.Wrap(err, "emulator: --from")
	}
	to, err := parseEAddr(ctx.String("to"))
	if err != nil {
		return errors.Wrap(err, "emulator: --to")
	}
	data, err := hex.DecodeString(trim0x(ctx.String("data")))
	if err != nil {
		return errors.Wrap(err, "emulator: --data")
	}
	value, ok := new(big.Int).SetString(ctx.String("value"), 10)
	if !ok {
		return errors.Errorf("emulator: invalid --value %q", ctx.String("value"))
	}

	programID, err := parseProgramID(cfg.ProgramID)
	if err != nil {
		return err
	}

	fetcher := emulator.NewRPCFetcher(cfg.Endpoint, programID)
	inner := state.New(from, programID, nil)
	inner = inner.WithBlockContext(ctx.Uint64("block-number"), ctx.Uint64("block-timestamp"))

	backend, err := emulator.New(inner, fetcher)
	if err != nil {
		return errors.Wrap(err, "emulator: build backend")
	}

	h := handler.New(backend, handler.Config{EmptyConsideredExists: false})
	m := machine.New(h)
	m.CallBegin(from, to, data, value)

	exit, err := m.Execute()
	if err != nil {
		return errors.Wrap(err, "emulator: execute")
	}

	log.Debug("emulator: call finished", "kind", exit.Kind, "err", exit.Err, "touched", len(backend.Touched()))

	report := emulator.BuildReport(backend, exit)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func buildConfig(ctx *cli.Context) (*config, error) {
	cfg := &config{}
	if path := ctx.String("config"); path != "" {
		if err := loadConfig(path, cfg); err != nil {
			return nil, err
		}
	}
	if v := ctx.String("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v := ctx.String("program-id"); v != "" {
		cfg.ProgramID = v
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("emulator: --endpoint (or config endpoint) is required")
	}
	return cfg, nil
}

func parseEAddr(s string) (common.EAddr, error) {
	b, err := hex.DecodeString(trim0x(s))
	if err != nil {
		return common.EAddr{}, err
	}
	if err := common.AssertLen("eaddr", b, len(common.EAddr{})); err != nil {
		return common.EAddr{}, err
	}
	return common.BytesToEAddr(b), nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
