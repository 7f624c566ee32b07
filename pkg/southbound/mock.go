package southbound

import (
	"context"
	"strings"
	"sync"

	"github.com/veesix-networks/vppifd/pkg/models"
)

// MockClient is an in-memory Client for tests. It records every executed
// line and replies from canned outputs.
type MockClient struct {
	mu sync.Mutex

	Commands []string
	// Outputs maps an exact command line to its reply.
	Outputs map[string]string
	// Failures maps a command line prefix to the error Exec returns.
	Failures map[string]error

	InterfaceList []models.Interface
	BondList      []models.Bond
	LcpList       []models.LcpPair
	StateErr      error

	Connected    bool
	ConnectErr   error
	ConnectCalls int

	// Block, when set, is received from before Exec returns.
	Block chan struct{}
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Commands:  make([]string, 0),
		Outputs:   make(map[string]string),
		Failures:  make(map[string]error),
		Connected: true,
	}
}

func (m *MockClient) Exec(ctx context.Context, line string) (string, error) {
	m.mu.Lock()
	if !m.Connected {
		m.mu.Unlock()
		return "", ErrNotConnected
	}
	m.Commands = append(m.Commands, line)
	out := m.Outputs[line]
	var failure error
	for prefix, err := range m.Failures {
		if strings.HasPrefix(line, prefix) {
			failure = err
			break
		}
	}
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if failure != nil {
		return out, &CommandError{Command: line, Output: out, Err: failure}
	}
	return out, nil
}

func (m *MockClient) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Commands...)
}

func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = m.Commands[:0]
}

func (m *MockClient) Interfaces(ctx context.Context) ([]models.Interface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return nil, ErrNotConnected
	}
	if m.StateErr != nil {
		return nil, m.StateErr
	}
	out := make([]models.Interface, 0, len(m.InterfaceList))
	for _, i := range m.InterfaceList {
		out = append(out, i.Clone())
	}
	return out, nil
}

func (m *MockClient) Bonds(ctx context.Context) ([]models.Bond, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return nil, ErrNotConnected
	}
	if m.StateErr != nil {
		return nil, m.StateErr
	}
	out := make([]models.Bond, 0, len(m.BondList))
	for _, b := range m.BondList {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (m *MockClient) LcpPairs(ctx context.Context) ([]models.LcpPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Connected {
		return nil, ErrNotConnected
	}
	if m.StateErr != nil {
		return nil, m.StateErr
	}
	return append([]models.LcpPair(nil), m.LcpList...), nil
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls++
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.Connected = true
	return nil
}

func (m *MockClient) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connected = false
	return nil
}

func (m *MockClient) Reconnect(ctx context.Context) error {
	if m.IsConnected() {
		return nil
	}
	return m.Connect(ctx)
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connected
}

func (m *MockClient) Transport() string {
	return "mock"
}
