// calls.go implements the calling convention: arguments pushed
// left-to-right, receiver on top, callee prologue popping both into static
// addresses, and the save/restore of every live caller local around each
// user-level call. Method bodies are emitted lazily: a call site reserves
// the callee's label and addresses and queues the body, and Compile drains
// the queue after the main program, so forward references and mutual
// recursion need no fixups.
package compiler

import (
	"sort"

	"github.com/golang/glog"

	"wsrb/internal/ir"
)

// reserve assigns a label, self slot and parameter addresses to a queued
// definition without emitting its body.
func (s *State) reserve(fi *FuncInfo) {
	if fi.Reserved {
		return
	}
	fi.Label = s.NewLabel()
	fi.SelfAddr = s.NewAddr()
	fi.ParamAddrs = make([]int64, len(fi.Def.Params))
	for i := range fi.Def.Params {
		fi.ParamAddrs[i] = s.NewAddr()
	}
	fi.Reserved = true
}

// require marks fi as actually called, queueing its body for emission.
// Definitions that are never required produce no code.
func (s *State) require(fi *FuncInfo) {
	s.reserve(fi)
	if fi.Compiled {
		return
	}
	fi.Compiled = true
	s.pending = append(s.pending, fi)
}

func (s *State) drainPending() {
	for len(s.pending) > 0 {
		fi := s.pending[0]
		s.pending = s.pending[1:]
		s.compileFunction(fi)
	}
}

// compileFunction emits one method body into the function segment. The
// main-program buffer and the caller's frame are swapped out for the
// duration; calls made inside the body queue further definitions, which
// drainPending picks up afterwards.
func (s *State) compileFunction(fi *FuncInfo) {
	glog.V(1).Infof("emitting %s (label %s, %d params)",
		funcKey(fi.Def.Class, fi.Def.Name), fi.Label, len(fi.ParamAddrs))
	savedMain := s.main
	savedScope := s.scope
	savedClass, savedSelf, savedHasSelf := s.curClass, s.curSelf, s.hasSelf

	s.main = nil
	s.scope = make(map[string]int64, len(fi.Def.Params))
	for i, p := range fi.Def.Params {
		s.scope[p] = fi.ParamAddrs[i]
	}
	s.curClass = fi.Def.Class
	s.curSelf = fi.SelfAddr
	s.hasSelf = true

	s.emit(ir.Def(fi.Label))
	s.storeTOS(fi.SelfAddr)
	for i := len(fi.ParamAddrs) - 1; i >= 0; i-- {
		s.storeTOS(fi.ParamAddrs[i])
	}
	s.compileBlock(fi.Def.Body)
	s.emit(ir.Simple(ir.END))

	s.funcBodies = append(s.funcBodies, s.main...)
	s.main = savedMain
	s.scope = savedScope
	s.curClass, s.curSelf, s.hasSelf = savedClass, savedSelf, savedHasSelf
}

// liveLocals returns the current frame's addresses in a fixed order, so
// the save and restore sequences around a call agree.
func (s *State) liveLocals() []int64 {
	addrs := make([]int64, 0, len(s.scope))
	for _, a := range s.scope {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// saveLocals pushes the current value of every live local. The addresses
// themselves are compile-time constants, so only the values travel on the
// stack.
func (s *State) saveLocals(addrs []int64) {
	for _, a := range addrs {
		s.loadAddr(a)
	}
}

// restoreLocals runs after the callee returns: the return value is stashed
// in TMP, the saved values are popped back into their addresses in reverse
// push order, and the return value is reloaded on top.
func (s *State) restoreLocals(addrs []int64) {
	if len(addrs) == 0 {
		return
	}
	s.storeTOS(TmpAddr)
	for i := len(addrs) - 1; i >= 0; i-- {
		s.storeTOS(addrs[i])
	}
	s.loadAddr(TmpAddr)
}

func (s *State) checkArity(fi *FuncInfo, argc int, line, col int, name string) {
	if len(fi.ParamAddrs) != argc {
		s.errorf(line, col, "wrong number of arguments for %q (given %d, expected %d)",
			name, argc, len(fi.ParamAddrs))
	}
}
