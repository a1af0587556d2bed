package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/plugin"
	"github.com/ayusman/wavestop/internal/store"
)

// ErrActionRefused is returned when a plugin ran but reported failure.
var ErrActionRefused = errors.New("action refused by plugin")

// ActionRunner carries out a terminal action of the state machine.
type ActionRunner interface {
	Run(ctx context.Context, action fsm.Action) error
}

// ActionRunnerFunc adapts a function to ActionRunner.
type ActionRunnerFunc func(ctx context.Context, action fsm.Action) error

func (f ActionRunnerFunc) Run(ctx context.Context, action fsm.Action) error {
	return f(ctx, action)
}

// pluginActions lists the plugin actions to try for a machine action, in
// order. A normal shutdown falls back to simulated input when the native
// command fails.
func pluginActions(action fsm.Action) []string {
	switch action {
	case fsm.ActionNormalShutdown:
		return []string{plugin.ActionShutdown, plugin.ActionSimulatedShutdown}
	case fsm.ActionFallbackShutdown:
		return []string{plugin.ActionSimulatedShutdown}
	default:
		return nil
	}
}

// PluginRunner executes actions through the configured plugin and records
// every attempt in the execution audit trail.
type PluginRunner struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	plugin   string
	dryRun   bool
	audit    *store.ExecutionRepository
}

// NewPluginRunner creates a PluginRunner from the action settings. st may be
// nil, in which case nothing is recorded.
func NewPluginRunner(cfg config.ActionConfig, st *store.Store) *PluginRunner {
	r := &PluginRunner{
		manager:  plugin.NewManager(cfg.PluginDir),
		executor: plugin.NewExecutor(cfg.TimeoutMs),
		plugin:   cfg.Plugin,
		dryRun:   cfg.DryRun,
	}
	if st != nil {
		r.audit = st.Executions()
	}
	return r
}

// Discover scans the plugin directory.
func (r *PluginRunner) Discover() error {
	if err := r.manager.Discover(); err != nil {
		return err
	}
	if _, err := r.manager.Get(r.plugin); err != nil {
		log.Printf("Plugin %q not found in %s", r.plugin, r.manager.PluginDir())
	}
	return nil
}

// Run tries each plugin action for action until one succeeds.
func (r *PluginRunner) Run(ctx context.Context, action fsm.Action) error {
	var errs []error
	for _, name := range pluginActions(action) {
		err := r.attempt(ctx, action, name)
		r.record(action, name, err)
		if err == nil {
			return nil
		}

		log.Printf("%s via %s/%s failed: %v", action, r.plugin, name, err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (r *PluginRunner) attempt(ctx context.Context, action fsm.Action, name string) error {
	p, err := r.manager.Get(r.plugin)
	if err != nil {
		if r.dryRun {
			log.Printf("dry run: would execute %s/%s for %s", r.plugin, name, action)
			return nil
		}
		return err
	}

	req := &plugin.Request{Action: name, Trigger: action.String()}
	if r.dryRun {
		req.Params = json.RawMessage(`{"dry_run":true}`)
	}

	resp, err := r.executor.Execute(ctx, p, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrActionRefused, resp.Error)
	}

	if r.dryRun {
		log.Printf("dry run: %s/%s planned %s", r.plugin, name, string(resp.Data))
	}
	return nil
}

func (r *PluginRunner) record(action fsm.Action, name string, err error) {
	if r.audit == nil {
		return
	}

	exec := &store.Execution{
		Action:       action.String(),
		PluginAction: name,
		Success:      err == nil,
		DryRun:       r.dryRun,
	}
	if err != nil {
		exec.Error = err.Error()
	}
	if err := r.audit.Create(exec); err != nil {
		log.Printf("Failed to record execution: %v", err)
	}
}
