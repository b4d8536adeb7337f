package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// dangerousGlobals can load code from disk or strings and bypass the
// sandbox.
var dangerousGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
}

// PrintFunc receives the output of the script's print calls.
type PrintFunc func(msg string)

// installSandbox removes globals that escape the sandbox.
func installSandbox(L *lua.LState) {
	for _, name := range dangerousGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	// Output goes nowhere until SetPrint is called.
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int { return 0 }))
}

// SetPrint redirects print to fn.
func (s *State) SetPrint(fn PrintFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fn(strings.Join(parts, "\t"))
		return 0
	}))
}
