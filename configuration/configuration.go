package configuration

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Dir               string `usage:"data directory"`
	IDField           string `usage:"unique identifier field of every row"`
	EnableCompression bool   `usage:"gzip responses"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:   "127.0.0.1:8080",
		Dir:        "data",
		IDField:    "id",
		ShowBanner: true,
	}
}
