package registry

func f(v float64) *float64 { return &v }

func sensor(id, zone string, dataRate float64) SensorConfig {
	return SensorConfig{ID: id, Zone: zone, DataRate: f(dataRate)}
}

func zone(xMin, xMax, yMin, yMax float64) ZoneConfig {
	return ZoneConfig{XMin: f(xMin), XMax: f(xMax), YMin: f(yMin), YMax: f(yMax)}
}

// DefaultDocument returns the built-in body map and channel constants.
// The body is normalised to the unit square, head at y=0. Channel constants
// follow the IEEE 802.15.6 CM3 on-body fits; sensitivity and margin are
// typical of 2.4 GHz low-power radios.
func DefaultDocument() *Document {
	return &Document{
		BodyZones: map[string]ZoneConfig{
			"head":      zone(0.40, 0.60, 0.00, 0.15),
			"chest":     zone(0.35, 0.65, 0.20, 0.45),
			"waist":     zone(0.35, 0.65, 0.46, 0.55),
			"left_arm":  zone(0.10, 0.30, 0.20, 0.55),
			"right_arm": zone(0.70, 0.90, 0.20, 0.55),
			"left_leg":  zone(0.35, 0.48, 0.60, 1.00),
			"right_leg": zone(0.52, 0.65, 0.60, 1.00),
		},
		Propagation: PropagationConfig{
			D0:        f(0.1),
			PL0LOS:    f(35.7),
			PL0NLOS:   f(48.4),
			NLOS:      f(3.23),
			NNLOS:     f(5.9),
			SigmaLOS:  f(6.1),
			SigmaNLOS: f(5.0),
			PSens:     f(-85),
			MSafe:     f(10),
		},
		Energy: EnergyConfig{
			EElec: f(50e-9),
			EInit: f(0.5),
		},
		Scenarios: map[string]ScenarioConfig{
			"S1": {
				PTXMax: f(0),
				Sensors: []SensorConfig{
					sensor("ecg", "chest", 2000),
					sensor("spo2", "left_arm", 400),
					sensor("temp", "right_arm", 100),
					sensor("accel", "waist", 1000),
				},
			},
			"S2": {
				PTXMax: f(-5),
				Sensors: []SensorConfig{
					sensor("ecg", "chest", 2000),
					sensor("eeg", "head", 4000),
					sensor("spo2", "left_arm", 400),
					sensor("emg", "right_leg", 3000),
					sensor("gait", "left_leg", 1000),
					sensor("temp", "right_arm", 100),
				},
			},
		},
	}
}
