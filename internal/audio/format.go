package audio

// ChannelCount caps requested channels at what the device offers, with a
// minimum of one.
func ChannelCount(requested, max int) int {
	if requested <= 0 {
		return 1
	}

	if max > 0 && requested > max {
		return max
	}

	return requested
}

// SampleRate prefers the requested rate, then the device default, then 44.1kHz.
func SampleRate(requested, deviceDefault float64) float64 {
	if requested > 0 {
		return requested
	}

	if deviceDefault > 0 {
		return deviceDefault
	}

	return 44100
}

// InitialDeviceIndex picks the requested device when valid, else the fallback.
func InitialDeviceIndex(requested, fallback, length int) int {
	if length == 0 {
		return 0
	}
	if requested >= 0 && requested < length {
		return requested
	}
	if fallback >= 0 && fallback < length {
		return fallback
	}
	return 0
}
