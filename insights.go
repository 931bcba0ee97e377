// Package insights is a telemetry client. Calls made before the client loads
// are buffered in a Snippet and replayed once, in order, when it loads;
// pending telemetry is flushed when the process is torn down.
//
//	snippet := insights.NewSnippet(&insights.Configuration{InstrumentationKey: key})
//	snippet.Call(func(ai *insights.ApplicationInsights) error {
//		ai.TrackEvent(insights.Event{Name: "started"}, nil)
//		return nil
//	})
//	ai, err := insights.Load(snippet, insights.WithHost(insights.NewProcess(nil)))
package insights

import (
	"github.com/GriffinCanCode/insights/internal/bootstrap"
	"github.com/GriffinCanCode/insights/internal/channel"
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/host"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Version is the SDK version.
const Version = bootstrap.Version

type (
	ApplicationInsights = bootstrap.ApplicationInsights
	Light               = bootstrap.Light
	Snippet             = bootstrap.Snippet
	PendingCall         = bootstrap.PendingCall
	CallError           = bootstrap.CallError
	State               = bootstrap.State
	Option              = bootstrap.Option

	Configuration = config.Configuration
	Resolved      = config.Resolved
	Flag          = config.Flag
	Number        = config.Number

	Item          = telemetry.Item
	PageView      = telemetry.PageView
	Exception     = telemetry.Exception
	AutoException = telemetry.AutoException
	Trace         = telemetry.Trace
	Metric        = telemetry.Metric
	Event         = telemetry.Event
	Dependency    = telemetry.Dependency
	SeverityLevel = telemetry.SeverityLevel

	Environment   = host.Environment
	Process       = host.Process
	Logger        = logging.Logger
	ClientOptions = channel.ClientOptions
)

var (
	ErrInvalidConfiguration = bootstrap.ErrInvalidConfiguration

	New        = bootstrap.New
	Load       = bootstrap.Load
	NewLight   = bootstrap.NewLight
	NewSnippet = bootstrap.NewSnippet

	WithHost             = bootstrap.WithHost
	WithLogger           = bootstrap.WithLogger
	WithMetrics          = bootstrap.WithMetrics
	WithSessionStore     = bootstrap.WithSessionStore
	WithClientOptions    = bootstrap.WithClientOptions
	WithDiagnostics      = bootstrap.WithDiagnostics
	WithChannel          = bootstrap.WithChannel
	WithExtensions       = bootstrap.WithExtensions
	DefaultClientOptions = channel.DefaultClientOptions

	Resolve    = config.Resolve
	LoadConfig = config.Load
	LoadFile   = config.LoadFile
	FlagOf     = config.FlagOf
	NumberOf   = config.NumberOf

	NewProcess = host.NewProcess
)
