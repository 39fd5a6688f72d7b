package scoring

import "github.com/banking/upi-risk-service/internal/domain"

// Demo mode.
//
// Everything in this file exists to drive canned fraud scenarios from the
// simulator screens. None of it is a fraud signal; it only runs when the
// policy has Demo.Enabled set.

// demoSenderRisk adds risk for the demo sender on simulated payments
func (c *calculator) demoSenderRisk(tx *domain.TransactionInput) float64 {
	if !c.policy.Demo.Enabled || !tx.IsSimulated {
		return 0
	}
	if c.policy.Demo.SenderID != "" && tx.SenderID == c.policy.Demo.SenderID {
		return patternDemoSender
	}
	return 0
}

// applySimulation replaces computed factors with the scenario's fixed values
func (c *calculator) applySimulation(f *factorScores, tx *domain.TransactionInput) {
	if !c.policy.Demo.Enabled || !tx.IsSimulated {
		return
	}

	switch tx.SimulationType {
	case domain.SimulationQRCodeTampering:
		f.qrCode = 0.9
	case domain.SimulationAccountTakeover:
		f.behavioral = 0.8
	case domain.SimulationFakeUPI:
		f.qrCode = 0.7
		f.metadata = 0.5
	case domain.SimulationDeviceSpoofing:
		f.behavioral = 0.6
	}
}
