package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gofws/pkg/config"
	"github.com/itohio/gofws/pkg/link"
	"github.com/itohio/gofws/pkg/sample"
	"github.com/itohio/gofws/pkg/scope"
	"github.com/itohio/gofws/pkg/trend"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated sensor module instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of reports to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Sampling.AverageSamples = *averageSamplesFlag
	}

	application := app.NewWithID("com.itohio.gofws")

	window := application.NewWindow("Filament Width Monitor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
	}

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(cfg)
	state.statusLabel = widget.NewLabel("Disconnected")

	window.SetContent(container.NewBorder(
		toolbar,
		state.statusLabel,
		nil,
		nil,
		state.scopeWidget,
	))
	window.SetOnClosed(func() {
		closeChain(state.chain)
	})
	window.ShowAndRun()
}

// chain tracks the components of the sample chain for graceful shutdown.
type chain struct {
	device      link.Device
	trackerDone chan struct{} // closed when the tracker goroutine exits
	diagDone    chan struct{} // closed when the diagnostics goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      link.Device
	tracker     *trend.Tracker
	scopeWidget *scope.ScopeWidget
	statusLabel *widget.Label
	window      fyne.Window
	connectBtn  *widget.Button
	mockBtns    []*widget.Button
	useMock     bool
	chain       *chain

	// Status bar parts, guarded by statusMu.
	statusMu   sync.Mutex
	linkStatus string
	diagStatus string

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar with Connect and Settings on the left and
// the simulated module controls on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	right := container.NewHBox()
	if state.useMock {
		for _, b := range createMockControls(state) {
			b.Disable()
			state.mockBtns = append(state.mockBtns, b)
			right.Add(b)
		}
	}

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn),
		right,
		nil,
	)
}

// closeChain closes the device and waits for the consumers to drain.
func closeChain(c *chain) {
	if c == nil {
		return
	}

	if c.device != nil {
		if err := c.device.Close(); err != nil {
			log.Printf("Error closing device: %v", err)
		}
	}
	if c.trackerDone != nil {
		<-c.trackerDone
	}
	if c.diagDone != nil {
		<-c.diagDone
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		closeChain(state.chain)
		state.chain = nil
		state.device = nil
		setMockControls(state, false)
		setStatus(state, "Disconnected", "")
		if state.useMock {
			fmt.Println("Disconnected from simulated module")
		} else {
			fmt.Println("Disconnected from serial port")
		}
		return
	}

	var device link.Device
	if state.useMock {
		device = link.NewMock(state.cfg)
		fmt.Println("Using simulated module")
	} else {
		device = link.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, link.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated module: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = device
	if state.useMock {
		fmt.Println("Connected to simulated module")
	} else {
		fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
	}
	setMockControls(state, true)
	setStatus(state, "Waiting for reports...", "")

	// A fresh tracker picks up tolerance changes made while disconnected.
	state.tracker = trend.New(state.cfg)
	state.scopeWidget.Clear()

	const updateInterval = 16 * time.Millisecond
	state.tracker.OnUpdate(func(samples []sample.Sample, excursions []trend.Excursion, stats trend.Stats) {
		if len(samples) > 0 {
			setStatus(state, linkText(samples[len(samples)-1], excursions), "")
		}

		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		fyne.Do(func() {
			state.scopeWidget.UpdateData(samples, excursions, stats)
		})
	})

	stream := sample.NewAveragingConverter(state.cfg, state.cfg.Sampling.AverageSamples, 500)(device.Samples())

	c := &chain{
		device:      device,
		trackerDone: make(chan struct{}),
		diagDone:    make(chan struct{}),
	}
	go func(tr *trend.Tracker) {
		defer close(c.trackerDone)
		tr.ProcessSamples(stream)
	}(state.tracker)
	go func() {
		defer close(c.diagDone)
		for d := range device.Events() {
			setStatus(state, "", diagText(d))
		}
	}()
	state.chain = c
}
