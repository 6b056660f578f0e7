package tools

import (
	"fmt"
	"time"
)

// Options configures the built-in tool set.
type Options struct {
	Workspace   Workspace
	ExecTimeout time.Duration

	// ExecUnrestricted lets exec run in directories outside the workspace.
	// File tools stay bound to the workspace either way.
	ExecUnrestricted bool
	Web              WebOptions
}

// RegisterDefaults registers every built-in tool into reg.
func RegisterDefaults(reg *Registry, opts Options) error {
	ws := opts.Workspace
	execWS := ws
	if opts.ExecUnrestricted {
		execWS.Restrict = false
	}
	constructors := []func() (Contract, error){
		func() (Contract, error) { return NewReadFileTool(ws) },
		func() (Contract, error) { return NewListDirTool(ws) },
		func() (Contract, error) { return NewGlobTool(ws) },
		func() (Contract, error) { return NewGrepTool(ws) },
		func() (Contract, error) { return NewWriteFileTool(ws) },
		func() (Contract, error) { return NewEditFileTool(ws) },
		func() (Contract, error) { return NewEditLinesTool(ws) },
		func() (Contract, error) { return NewAppendFileTool(ws) },
		func() (Contract, error) { return NewExecTool(opts.ExecTimeout, execWS) },
		func() (Contract, error) { return NewWebFetchTool(opts.Web) },
		func() (Contract, error) { return NewWebSearchTool(opts.Web) },
	}
	for _, build := range constructors {
		c, err := build()
		if err != nil {
			return fmt.Errorf("build tool: %w", err)
		}
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
