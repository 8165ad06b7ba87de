package meter

// Response layout of the two meter commands. The device-info response carries the battery
// level; the sensor-data response carries temperature and humidity.
//
// Temperature uses a sign bit rather than two's complement: byte 2 bit 7 set means positive.
const (
	byteBattery  = 1
	byteHumidity = 3
	byteTempDec  = 1
	byteTempInt  = 2
	byteTempSign = 2

	maskHumidity = 0x7F
	maskTempDec  = 0x0F
	maskTempInt  = 0x7F
	maskTempSign = 0x80

	devInfoMinLen    = byteBattery + 1
	sensorDataMinLen = byteHumidity + 1
)

const (
	responseDeviceInfo = "device-info"
	responseSensorData = "sensor-data"
)

// Reading holds one complete set of decoded values.
type Reading struct {
	Battery     int
	Humidity    int
	Temperature float64
}

// Value returns the reading for k as a float64.
func (r Reading) Value(k MetricKind) float64 {
	switch k {
	case Battery:
		return float64(r.Battery)
	case Humidity:
		return float64(r.Humidity)
	case Temperature:
		return r.Temperature
	default:
		return 0
	}
}

// DecodeBattery returns the battery level from a device-info response.
// Values above 100 are passed through unchanged.
func DecodeBattery(devInfo []byte) (int, error) {
	if len(devInfo) < devInfoMinLen {
		return 0, &MalformedResponseError{Response: responseDeviceInfo, Got: len(devInfo), Want: devInfoMinLen}
	}
	return int(devInfo[byteBattery]), nil
}

// DecodeHumidity returns the relative humidity (0-127) from a sensor-data response.
func DecodeHumidity(sensorData []byte) (int, error) {
	if len(sensorData) < sensorDataMinLen {
		return 0, &MalformedResponseError{Response: responseSensorData, Got: len(sensorData), Want: sensorDataMinLen}
	}
	return int(sensorData[byteHumidity] & maskHumidity), nil
}

// DecodeTemperature returns the temperature in °C with one decimal of precision.
func DecodeTemperature(sensorData []byte) (float64, error) {
	if len(sensorData) < sensorDataMinLen {
		return 0, &MalformedResponseError{Response: responseSensorData, Got: len(sensorData), Want: sensorDataMinLen}
	}
	dec := sensorData[byteTempDec] & maskTempDec
	whole := sensorData[byteTempInt] & maskTempInt
	temp := float64(whole) + float64(dec)/10
	if sensorData[byteTempSign]&maskTempSign != maskTempSign {
		temp = -temp
	}
	return temp, nil
}

// DecodeReading decodes both responses of one transaction.
func DecodeReading(devInfo, sensorData []byte) (Reading, error) {
	battery, err := DecodeBattery(devInfo)
	if err != nil {
		return Reading{}, err
	}
	humidity, err := DecodeHumidity(sensorData)
	if err != nil {
		return Reading{}, err
	}
	temperature, err := DecodeTemperature(sensorData)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Battery:     battery,
		Humidity:    humidity,
		Temperature: temperature,
	}, nil
}
