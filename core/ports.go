package core

// PropagationModel computes physical-layer quantities for one sensor-hub pair.
type PropagationModel interface {
	Distance(p1, p2 Position) float64
	LineOfSight(sensor, hub Position) bool
	PathLoss(distance float64, los bool) float64 // dB, stochastic
}

// EnergyModel converts link attenuation into transmit power and energy.
type EnergyModel interface {
	RequiredTxPower(pathLossDB float64) float64           // dBm
	Consumption(bits float64, txPowerDBm float64) float64 // J
	InitialEnergy() float64                               // J per node
}

// Shadowing supplies the zero-mean Gaussian term added to path loss.
// Implementations used by concurrent evaluators must be goroutine-safe.
type Shadowing interface {
	Sample(sigma float64) float64
}

// FitnessEvaluator scores solution vectors for an external optimizer.
type FitnessEvaluator interface {
	Decode(vector []float64) (Placement, error)
	Evaluate(vector []float64) (float64, error)
	Metrics(vector []float64) (Metrics, error)
	Dimension() int
}
