// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"github.com/holiman/uint256"
)

// stackLimit is the EVM's standard 1024-word operand stack bound.
const stackLimit = 1024

// Stack is the frame's 256-bit operand stack.
type Stack struct {
	data []uint256.Int
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

func (s *Stack) Len() int { return len(s.data) }

func (s *Stack) Push(v *uint256.Int) {
	s.data = append(s.data, *v)
}

func (s *Stack) Pop() uint256.Int {
	n := len(s.data) - 1
	v := s.data[n]
	s.data = s.data[:n]
	return v
}

// Peek returns a pointer to the top element without removing it.
func (s *Stack) Peek() *uint256.Int {
	return &s.data[len(s.data)-1]
}

// Back returns a pointer to the n'th element from the top (0-indexed).
func (s *Stack) Back(n int) *uint256.Int {
	return &s.data[len(s.data)-n-1]
}

// Dup pushes a copy of the n'th element from the top (1-indexed, matching
// DUP1..DUP16).
func (s *Stack) Dup(n int) {
	s.data = append(s.data, s.data[len(s.data)-n])
}

// Swap exchanges the top element with the n'th element from the top
// (1-indexed, matching SWAP1..SWAP16).
func (s *Stack) Swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

// Words returns the stack contents bottom-to-top, for persistence.
func (s *Stack) Words() []uint256.Int {
	out := make([]uint256.Int, len(s.data))
	copy(out, s.data)
	return out
}

// StackFromWords rebuilds a Stack from a bottom-to-top word list, the
// inverse of Words.
func StackFromWords(words []uint256.Int) *Stack {
	data := make([]uint256.Int, len(words))
	copy(data, words)
	return &Stack{data: data}
}
