package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gofws/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createBusTab(state),
		createSamplingTab(state),
		createToleranceTab(state),
		createCalibrationTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting failures in
// a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// reconnect restarts the sample chain if it is running.
func reconnect(state *appState) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}
	handleConnect(state)
	handleConnect(state)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	if err == nil {
		for _, port := range ports {
			portOptions = append(portOptions, port.Name)
		}
	}

	currentPort := state.cfg.Serial.Port
	found := false
	for _, opt := range portOptions {
		if opt == currentPort {
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentPort != "" {
		portSelect.SetSelected(currentPort)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			changed := false
			if portSelect.Selected != "" && portSelect.Selected != state.cfg.Serial.Port {
				state.cfg.Serial.Port = portSelect.Selected
				changed = true
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud != state.cfg.Serial.BaudRate {
				state.cfg.Serial.BaudRate = baud
				changed = true
			}
			if !saveConfig(state) {
				return
			}
			if changed && !state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createBusTab creates the module bus configuration tab. The values apply to
// the simulated module.
func createBusTab(state *appState) *container.TabItem {
	addrEntry := widget.NewEntry()
	addrEntry.SetText(fmt.Sprintf("0x%02X", state.cfg.Bus.Address))

	livenessEntry := widget.NewEntry()
	livenessEntry.SetText(state.cfg.Bus.LivenessWindow.String())

	diagEnabled := widget.NewCheck("", nil)
	diagEnabled.SetChecked(state.cfg.Diagnostics.Enabled)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Address (7-bit)", Widget: addrEntry},
			{Text: "Liveness Window", Widget: livenessEntry},
			{Text: "Bus Diagnostics", Widget: diagEnabled},
		},
		OnSubmit: func() {
			if addr, err := strconv.ParseUint(addrEntry.Text, 0, 8); err == nil {
				state.cfg.Bus.Address = uint8(addr)
			}
			if lw, err := time.ParseDuration(livenessEntry.Text); err == nil {
				state.cfg.Bus.LivenessWindow = lw
			}
			state.cfg.Diagnostics.Enabled = diagEnabled.Checked
			if saveConfig(state) && state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Bus", form)
}

// createSamplingTab creates the Sampling configuration tab.
func createSamplingTab(state *appState) *container.TabItem {
	oversampleEntry := widget.NewEntry()
	oversampleEntry.SetText(strconv.Itoa(state.cfg.Sampling.Oversample))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Sampling.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Oversample", Widget: oversampleEntry},
			{Text: "Average Reports (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if n, err := strconv.Atoi(oversampleEntry.Text); err == nil {
				state.cfg.Sampling.Oversample = n
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Sampling.AverageSamples = avg
			}
			if saveConfig(state) {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Sampling", form)
}

// createToleranceTab creates the Tolerance configuration tab.
func createToleranceTab(state *appState) *container.TabItem {
	nominalEntry := widget.NewEntry()
	nominalEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Tolerance.NominalMM))

	minEntry := widget.NewEntry()
	minEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Tolerance.MinMM))

	maxEntry := widget.NewEntry()
	maxEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Tolerance.MaxMM))

	windowEntry := widget.NewEntry()
	windowEntry.SetText(state.cfg.Tolerance.WindowLength.String())

	minExcursionEntry := widget.NewEntry()
	minExcursionEntry.SetText(state.cfg.Tolerance.MinExcursion.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Nominal (mm)", Widget: nominalEntry},
			{Text: "Min (mm)", Widget: minEntry},
			{Text: "Max (mm)", Widget: maxEntry},
			{Text: "Window", Widget: windowEntry},
			{Text: "Min Excursion", Widget: minExcursionEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(nominalEntry.Text, 64); err == nil {
				state.cfg.Tolerance.NominalMM = v
			}
			if v, err := strconv.ParseFloat(minEntry.Text, 64); err == nil {
				state.cfg.Tolerance.MinMM = v
			}
			if v, err := strconv.ParseFloat(maxEntry.Text, 64); err == nil {
				state.cfg.Tolerance.MaxMM = v
			}
			if d, err := time.ParseDuration(windowEntry.Text); err == nil {
				state.cfg.Tolerance.WindowLength = d
			}
			if d, err := time.ParseDuration(minExcursionEntry.Text); err == nil {
				state.cfg.Tolerance.MinExcursion = d
			}
			if saveConfig(state) {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Tolerance", form)
}

// createCalibrationTab creates the Calibration configuration tab.
func createCalibrationTab(state *appState) *container.TabItem {
	var refEntries [3]*widget.Entry
	items := make([]*widget.FormItem, 0, len(refEntries)+2)
	for i := range refEntries {
		refEntries[i] = widget.NewEntry()
		refEntries[i].SetText(fmt.Sprintf("%.2f", state.cfg.Calibration.References[i]))
		items = append(items, &widget.FormItem{Text: fmt.Sprintf("Reference %d (mm)", i+1), Widget: refEntries[i]})
	}

	debounceEntry := widget.NewEntry()
	debounceEntry.SetText(state.cfg.Calibration.Debounce.String())

	pollEntry := widget.NewEntry()
	pollEntry.SetText(state.cfg.Calibration.Poll.String())

	items = append(items,
		&widget.FormItem{Text: "Debounce", Widget: debounceEntry},
		&widget.FormItem{Text: "Poll", Widget: pollEntry},
	)

	form := &widget.Form{
		Items: items,
		OnSubmit: func() {
			for i, e := range refEntries {
				if v, err := strconv.ParseFloat(e.Text, 32); err == nil {
					state.cfg.Calibration.References[i] = float32(v)
				}
			}
			if d, err := time.ParseDuration(debounceEntry.Text); err == nil {
				state.cfg.Calibration.Debounce = d
			}
			if d, err := time.ParseDuration(pollEntry.Text); err == nil {
				state.cfg.Calibration.Poll = d
			}
			if saveConfig(state) && state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createMockTab creates the simulated module configuration tab.
func createMockTab(state *appState) *container.TabItem {
	nominalEntry := widget.NewEntry()
	nominalEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.NominalMM))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.AmplitudeMM))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Mock.Period.String())

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.NoiseLevel))

	requestPeriodEntry := widget.NewEntry()
	requestPeriodEntry.SetText(state.cfg.Mock.RequestPeriod.String())

	errorRateEntry := widget.NewEntry()
	errorRateEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.ErrorRate))

	testMode := widget.NewCheck("", nil)
	testMode.SetChecked(state.cfg.Mock.TestMode)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Nominal (mm)", Widget: nominalEntry},
			{Text: "Wander Amplitude (mm)", Widget: amplitudeEntry},
			{Text: "Wander Period", Widget: periodEntry},
			{Text: "ADC Noise (counts)", Widget: noiseEntry},
			{Text: "Controller Poll Period", Widget: requestPeriodEntry},
			{Text: "Bus Error Rate", Widget: errorRateEntry},
			{Text: "Test Mode", Widget: testMode},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(nominalEntry.Text, 32); err == nil {
				state.cfg.Mock.NominalMM = float32(v)
			}
			if v, err := strconv.ParseFloat(amplitudeEntry.Text, 32); err == nil {
				state.cfg.Mock.AmplitudeMM = float32(v)
			}
			if d, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Mock.Period = d
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 32); err == nil {
				state.cfg.Mock.NoiseLevel = float32(v)
			}
			if d, err := time.ParseDuration(requestPeriodEntry.Text); err == nil {
				state.cfg.Mock.RequestPeriod = d
			}
			if v, err := strconv.ParseFloat(errorRateEntry.Text, 64); err == nil {
				state.cfg.Mock.ErrorRate = v
			}
			state.cfg.Mock.TestMode = testMode.Checked
			if saveConfig(state) && state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
