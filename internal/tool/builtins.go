package tool

import "time"

// RegisterBuiltins wires the standard tool set into reg. All tools share
// one sandbox and one set of output limits.
func RegisterBuiltins(reg *Registry, sandbox *Sandbox, timeout time.Duration, limits Limits) error {
	engine := NewEngine(sandbox)
	tools := []Tool{
		NewBash(engine, timeout, limits),
		NewRead(sandbox, limits),
		NewWrite(sandbox),
		NewEdit(sandbox),
		NewLS(sandbox, limits),
		NewGrep(sandbox, timeout, limits),
		NewGlob(sandbox, timeout, limits),
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
