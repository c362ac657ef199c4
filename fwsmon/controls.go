package main

import (
	"time"

	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gofws/pkg/link"
	"github.com/itohio/gofws/pkg/sim"
)

// pressDuration is how long a toolbar click holds a simulated button.
const pressDuration = 150 * time.Millisecond

// thinRodMM is the diameter of the rod inserted by the Thin toggle.
const thinRodMM = 1.60

// createMockControls creates the buttons that drive the simulated module:
// the calibration trigger, the NEXT button, and a thin rod toggle.
func createMockControls(state *appState) []*widget.Button {
	calibrateBtn := widget.NewButtonWithIcon("Calibrate", theme.MediaRecordIcon(), func() {
		if m := mockModule(state); m != nil {
			go pulse(m.Trigger)
		}
	})

	nextBtn := widget.NewButtonWithIcon("Next", theme.MediaSkipNextIcon(), func() {
		if m := mockModule(state); m != nil {
			go pulse(m.Next)
		}
	})

	var thin bool
	var thinBtn *widget.Button
	thinBtn = widget.NewButtonWithIcon("Thin", theme.WarningIcon(), func() {
		m := mockModule(state)
		if m == nil {
			return
		}
		thin = !thin
		for sensor := range 2 {
			if thin {
				m.Source.Insert(sensor, thinRodMM)
			} else {
				m.Source.Remove(sensor)
			}
		}
		if thin {
			thinBtn.Importance = widget.HighImportance
		} else {
			thinBtn.Importance = widget.MediumImportance
		}
		thinBtn.Refresh()
	})

	return []*widget.Button{calibrateBtn, nextBtn, thinBtn}
}

// setMockControls enables or disables the simulated module controls.
func setMockControls(state *appState, enabled bool) {
	for _, b := range state.mockBtns {
		if enabled {
			b.Enable()
		} else {
			b.Importance = widget.MediumImportance
			b.Disable()
		}
	}
}

func mockModule(state *appState) *sim.Module {
	m, ok := state.device.(*link.Mock)
	if !ok || !m.IsConnected() {
		return nil
	}
	return m.Module()
}

func pulse(b *sim.Button) {
	b.Press()
	time.Sleep(pressDuration)
	b.Release()
}
