// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package container

import (
	"bytes"
	stderrors "errors"
	"strings"
	"time"

	"github.com/canonical/pebble/client"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
	"gopkg.in/yaml.v3"
)

var logger = loggo.GetLogger("paascharm.container")

const (
	// connectAttempts bounds the connectivity probe; the supervisor
	// socket appears shortly after the container starts, so a short
	// bounded retry avoids spurious "waiting" reconciliations.
	connectAttempts = 3
	connectDelay    = 200 * time.Millisecond

	// replanTimeout bounds the wait for the supervisor to apply the
	// merged plan to its services.
	replanTimeout = 30 * time.Second
)

// Pebble is a Container implementation backed by the Pebble client
// talking to the supervisor socket of the workload container.
type Pebble struct {
	client *client.Client
	clock  clock.Clock
}

// NewPebble returns a Pebble container client for the supervisor
// listening on the given unix socket path.
func NewPebble(socketPath string, clk clock.Clock) (*Pebble, error) {
	pc, err := client.New(&client.Config{Socket: socketPath})
	if err != nil {
		return nil, errors.Annotate(err, "creating pebble client")
	}
	return &Pebble{client: pc, clock: clk}, nil
}

// CanConnect is part of the Container interface.
func (p *Pebble) CanConnect() bool {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := p.client.SysInfo()
			return err
		},
		Attempts: connectAttempts,
		Delay:    connectDelay,
		Clock:    p.clock,
	})
	if err != nil {
		logger.Debugf("pebble is not reachable: %v", err)
		return false
	}
	return true
}

// Exists is part of the Container interface.
func (p *Pebble) Exists(path string) (bool, error) {
	_, err := p.client.ListFiles(&client.ListFilesOptions{Path: path, Itself: true})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Trace(err)
	}
	return true, nil
}

// Pull is part of the Container interface.
func (p *Pebble) Pull(path string) (string, error) {
	var buf bytes.Buffer
	err := p.client.Pull(&client.PullOptions{Path: path, Target: &buf})
	if err != nil {
		if isNotFound(err) {
			return "", errors.Annotatef(ErrNotFound, "pulling %q", path)
		}
		return "", errors.Trace(err)
	}
	return buf.String(), nil
}

// Push is part of the Container interface.
func (p *Pebble) Push(path, content string) error {
	err := p.client.Push(&client.PushOptions{
		Path:     path,
		Source:   strings.NewReader(content),
		MakeDirs: true,
	})
	return errors.Trace(err)
}

// MakeDir is part of the Container interface.
func (p *Pebble) MakeDir(path string) error {
	err := p.client.MakeDir(&client.MakeDirOptions{Path: path, MakeParents: true})
	return errors.Trace(err)
}

// Exec is part of the Container interface.
func (p *Pebble) Exec(opts ExecOptions) (string, string, error) {
	var stdout, stderr bytes.Buffer
	proc, err := p.client.Exec(&client.ExecOptions{
		Command:     opts.Command,
		Environment: opts.Environment,
		WorkingDir:  opts.WorkingDir,
		User:        opts.User,
		Group:       opts.Group,
		Stdout:      &stdout,
		Stderr:      &stderr,
	})
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if err := proc.Wait(); err != nil {
		var exitErr *client.ExitError
		if stderrors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), &ExecError{
				Command:  opts.Command,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
		}
		return stdout.String(), stderr.String(), errors.Trace(err)
	}
	return stdout.String(), stderr.String(), nil
}

// SendSignal is part of the Container interface.
func (p *Pebble) SendSignal(signal, service string) error {
	err := p.client.SendSignal(&client.SendSignalOptions{
		Signal:   signal,
		Services: []string{service},
	})
	return errors.Trace(err)
}

// AddLayer is part of the Container interface.
func (p *Pebble) AddLayer(label string, layer Layer) error {
	data, err := yaml.Marshal(layer)
	if err != nil {
		return errors.Trace(err)
	}
	err = p.client.AddLayer(&client.AddLayerOptions{
		Combine:   true,
		Label:     label,
		LayerData: data,
	})
	return errors.Trace(err)
}

// Replan is part of the Container interface.
func (p *Pebble) Replan() error {
	changeID, err := p.client.Replan(&client.ServiceOptions{})
	if err != nil {
		return errors.Trace(err)
	}
	change, err := p.client.WaitChange(changeID, &client.WaitChangeOptions{Timeout: replanTimeout})
	if err != nil {
		return errors.Trace(err)
	}
	if change.Err != "" {
		return errors.Errorf("replan failed: %s", change.Err)
	}
	return nil
}

// IsRunning is part of the Container interface.
func (p *Pebble) IsRunning(service string) (bool, error) {
	infos, err := p.client.Services(&client.ServicesOptions{Names: []string{service}})
	if err != nil {
		return false, errors.Trace(err)
	}
	if len(infos) == 0 {
		return false, nil
	}
	return infos[0].Current == client.StatusActive, nil
}

func isNotFound(err error) bool {
	var apiErr *client.Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Kind == "not-found"
	}
	return false
}
