package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"

	"github.com/itohio/gofws/pkg/link"
	"github.com/itohio/gofws/pkg/sample"
	"github.com/itohio/gofws/pkg/trend"
)

// setStatus updates the non-empty parts of the status bar.
func setStatus(state *appState, linkStatus, diagStatus string) {
	state.statusMu.Lock()
	if linkStatus != "" {
		state.linkStatus = linkStatus
	}
	if diagStatus != "" {
		state.diagStatus = diagStatus
	}
	if linkStatus == "Disconnected" {
		state.diagStatus = ""
	}
	text := state.linkStatus
	if state.diagStatus != "" {
		text += " | " + state.diagStatus
	}
	state.statusMu.Unlock()

	fyne.Do(func() {
		state.statusLabel.SetText(text)
	})
}

func linkText(last sample.Sample, excursions []trend.Excursion) string {
	conn := "IDLE"
	if last.Active {
		conn = "ACTIVE"
	}
	ongoing := 0
	for _, e := range excursions {
		if e.Ongoing {
			ongoing++
		}
	}
	return fmt.Sprintf("I2C: %s (%d requests) | excursions: %d (%d ongoing)", conn, last.Requests, len(excursions), ongoing)
}

func diagText(d link.Diag) string {
	c := d.Counters
	var b strings.Builder
	fmt.Fprintf(&b, "own7=0x%02X rd=%d wr=%d", d.Address, c.ReadAddressed, c.WriteAddressed)
	if c.WriteReadError > 0 || c.Reinit > 0 || c.QueueOverflow > 0 {
		fmt.Fprintf(&b, " ioerr=%d reinits=%d qovf=%d", c.WriteReadError, c.Reinit, c.QueueOverflow)
	}
	return b.String()
}
