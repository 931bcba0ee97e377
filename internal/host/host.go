package host

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/logging"
)

// BeforeUnload is the teardown event.
const BeforeUnload = "beforeunload"

// Environment is the hosting environment's event surface.
type Environment interface {
	IsEventSupported(name string) bool
	AddEventHandler(name string, handler func()) bool
}

// Process maps BeforeUnload onto process termination signals.
type Process struct {
	logger  *logging.Logger
	signals []os.Signal

	mu       sync.Mutex
	handlers []func()
	fired    bool
	closed   bool

	sigCh chan os.Signal
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewProcess starts listening for signals, SIGINT and SIGTERM by default.
func NewProcess(logger *logging.Logger, signals ...os.Signal) *Process {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	p := &Process{
		logger:  logger.Named("host"),
		signals: signals,
		sigCh:   make(chan os.Signal, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	signal.Notify(p.sigCh, signals...)
	go p.listen()
	return p
}

func (p *Process) listen() {
	select {
	case sig := <-p.sigCh:
		p.logger.Info("Teardown signal received", zap.String("signal", sig.String()))
		p.Dispatch(BeforeUnload)
	case <-p.stop:
	}
}

// IsEventSupported implements Environment.
func (p *Process) IsEventSupported(name string) bool {
	return name == BeforeUnload && len(p.signals) > 0
}

// AddEventHandler implements Environment. It refuses unsupported events, nil
// handlers and registrations after teardown.
func (p *Process) AddEventHandler(name string, handler func()) bool {
	if handler == nil || !p.IsEventSupported(name) {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fired || p.closed {
		return false
	}
	p.handlers = append(p.handlers, handler)
	return true
}

// Dispatch runs the event's handlers once, in registration order. A
// panicking handler does not stop the rest.
func (p *Process) Dispatch(name string) {
	if name != BeforeUnload {
		return
	}

	p.mu.Lock()
	if p.fired {
		p.mu.Unlock()
		return
	}
	p.fired = true
	handlers := p.handlers
	p.handlers = nil
	p.mu.Unlock()

	for i, h := range handlers {
		p.run(i, h)
	}
	close(p.done)
}

func (p *Process) run(i int, h func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Teardown handler panicked",
				zap.Int("handler", i),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	h()
}

// Done is closed after the teardown handlers have run.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Close stops listening for signals without running handlers.
func (p *Process) Close() {
	p.once.Do(func() {
		signal.Stop(p.sigCh)
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
	})
}
