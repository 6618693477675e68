package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	FeedsDir          string
	Endpoint          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	Live              bool

	// Application metadata
	UserAgent string
	Timeout   int
	Timezone  string
	Debug     bool
	Version   string
}
