/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package monitoring

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/pkg/errors"
)

const protocol = "tcp"

type Endpoint struct {
	Host string
	Port int
}

// Address returns a string representation of the endpoint's address.
func (e *Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Monitor runs a metrics server for a Provider.
type Monitor struct {
	Provider *Provider
	logger   types.Logger
	endpoint Endpoint
	stop     context.CancelFunc
	done     chan error
	listener net.Listener
}

func NewMonitor(endpoint Endpoint, logger types.Logger) *Monitor {
	return &Monitor{Provider: NewProvider(logger), endpoint: endpoint, logger: logger}
}

// Start binds the endpoint and serves in the background. A zero port binds an ephemeral
// port; Address reports the effective one.
func (m *Monitor) Start() error {
	listener, err := net.Listen(protocol, m.endpoint.Address())
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	tcpAddress, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return errors.Errorf("failed to cast %s to TCP address", listener.Addr())
	}
	m.endpoint.Port = tcpAddress.Port
	m.listener = listener
	m.logger.Infof("Listening on: %s://%s", protocol, m.endpoint.Address())

	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	m.done = make(chan error, 1)
	go func() {
		m.done <- m.Provider.StartPrometheusServer(ctx, listener)
	}()
	return nil
}

// Stop shuts the server down and waits for it to return.
func (m *Monitor) Stop() error {
	if m.stop == nil {
		return nil
	}
	m.stop()
	return <-m.done
}

func (m *Monitor) Address() string {
	return fmt.Sprintf("http://%s/metrics", m.endpoint.Address())
}
