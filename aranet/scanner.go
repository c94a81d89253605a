package aranet

type Scanner interface {

	// returns map from advertised device name to sensor struct
	Scan() (map[string]Sensor, error)
}
