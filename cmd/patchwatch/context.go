package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"patchwatch/internal/approval"
	"patchwatch/internal/config"
	"patchwatch/internal/logging"
	"patchwatch/internal/notifications"
	"patchwatch/internal/reviewers"
	"patchwatch/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// withWorkflow opens the store and wires the consensus workflow around it.
func (c *commandContext) withWorkflow(fn func(*store.Store, *approval.Workflow) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return c.withStore(func(st *store.Store) error {
		roster := reviewers.NewStatic(cfg.Approvals.Reviewers)
		notifier := notifications.NewService(cfg)
		wf := approval.NewWorkflow(st, roster, notifier, logging.NewNop())
		return fn(st, wf)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
