package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Log      LogConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Analysis AnalysisConfig
	Columns  analysis.Columns
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int64
}

type AppConfig struct {
	DataDir           string
	MaxConcurrentRuns int64
	BatchWorkers      int
}

type LogConfig struct {
	Level  string
	Format string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// StorageConfig points at an S3-compatible bucket. An empty endpoint disables it.
type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	ReportPrefix string
}

type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

// AnalysisConfig mirrors analysis.Params without the as-of date, which is
// chosen per run.
type AnalysisConfig struct {
	LeadTimeDays       float64
	CoverageMonths     float64
	SellingDaysPerWeek float64
	ServiceZ           float64
	ABCThresholdA      float64
	ABCThresholdB      float64
	XYZThresholdX      float64
	XYZThresholdY      float64
	DeviationBasis     string
	SafetyStockScaling string
	ZeroSales          string
	ValueBasis         string
	AlertMinMonths     int
	AlertCoverFactor   float64
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)
		v.AutomaticEnv()

		instance = FromViper(v)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

// SetDefaults registers every key with its factory value. Analysis defaults
// come from analysis.DefaultParams so there is a single source for them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 64)
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("APP_MAX_CONCURRENT_RUNS", 4)
	v.SetDefault("APP_BATCH_WORKERS", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 600)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_REPORT_PREFIX", "reports/")
	v.SetDefault("DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")

	p := analysis.DefaultParams(time.Time{})
	v.SetDefault("ANALYSIS_LEAD_TIME_DAYS", p.LeadTimeDays)
	v.SetDefault("ANALYSIS_COVERAGE_MONTHS", p.CoverageMonths)
	v.SetDefault("ANALYSIS_SELLING_DAYS_PER_WEEK", p.SellingDaysPerWeek)
	v.SetDefault("ANALYSIS_SERVICE_Z", p.ServiceZ)
	v.SetDefault("ANALYSIS_ABC_A", p.ABCThresholdA)
	v.SetDefault("ANALYSIS_ABC_B", p.ABCThresholdB)
	v.SetDefault("ANALYSIS_XYZ_X", p.XYZThresholdX)
	v.SetDefault("ANALYSIS_XYZ_Y", p.XYZThresholdY)
	v.SetDefault("ANALYSIS_DEVIATION_BASIS", string(p.DeviationBasis))
	v.SetDefault("ANALYSIS_SAFETY_STOCK_SCALING", string(p.SafetyStockScaling))
	v.SetDefault("ANALYSIS_ZERO_SALES", string(p.ZeroSales))
	v.SetDefault("ANALYSIS_VALUE_BASIS", string(p.ValueBasis))
	v.SetDefault("ANALYSIS_ALERT_MIN_MONTHS", p.AlertMinMonths)
	v.SetDefault("ANALYSIS_ALERT_COVER_FACTOR", p.AlertCoverFactor)

	c := analysis.DefaultColumns()
	v.SetDefault("COLUMN_SALES_PRODUCT", c.Sales.Product)
	v.SetDefault("COLUMN_SALES_DATE", c.Sales.Date)
	v.SetDefault("COLUMN_SALES_QUANTITY", c.Sales.Quantity)
	v.SetDefault("COLUMN_SALES_PRICE", c.Sales.Price)
	v.SetDefault("COLUMN_SALES_CUSTOMER", c.Sales.Customer)
	v.SetDefault("COLUMN_SALES_SUPPLIER", c.Sales.Supplier)
	v.SetDefault("COLUMN_INVENTORY_PRODUCT", c.Inventory.Product)
	v.SetDefault("COLUMN_INVENTORY_DESCRIPTION", c.Inventory.Description)
	v.SetDefault("COLUMN_INVENTORY_BALANCE", c.Inventory.Balance)
	v.SetDefault("COLUMN_INVENTORY_COST", c.Inventory.Cost)
}

// FromViper reads a Config out of v. Callers register defaults first.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    v.GetInt64("SERVER_MAX_UPLOAD_MB"),
		},
		App: AppConfig{
			DataDir:           v.GetString("APP_DATA_DIR"),
			MaxConcurrentRuns: v.GetInt64("APP_MAX_CONCURRENT_RUNS"),
			BatchWorkers:      v.GetInt("APP_BATCH_WORKERS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("S3_ENDPOINT"),
			AccessKey:    v.GetString("S3_ACCESS_KEY"),
			SecretKey:    v.GetString("S3_SECRET_KEY"),
			Bucket:       v.GetString("S3_BUCKET"),
			Region:       v.GetString("S3_REGION"),
			UseSSL:       v.GetBool("S3_USE_SSL"),
			ReportPrefix: v.GetString("S3_REPORT_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("DRIVE_CREDENTIALS_JSON"),
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
		Analysis: AnalysisConfig{
			LeadTimeDays:       v.GetFloat64("ANALYSIS_LEAD_TIME_DAYS"),
			CoverageMonths:     v.GetFloat64("ANALYSIS_COVERAGE_MONTHS"),
			SellingDaysPerWeek: v.GetFloat64("ANALYSIS_SELLING_DAYS_PER_WEEK"),
			ServiceZ:           v.GetFloat64("ANALYSIS_SERVICE_Z"),
			ABCThresholdA:      v.GetFloat64("ANALYSIS_ABC_A"),
			ABCThresholdB:      v.GetFloat64("ANALYSIS_ABC_B"),
			XYZThresholdX:      v.GetFloat64("ANALYSIS_XYZ_X"),
			XYZThresholdY:      v.GetFloat64("ANALYSIS_XYZ_Y"),
			DeviationBasis:     v.GetString("ANALYSIS_DEVIATION_BASIS"),
			SafetyStockScaling: v.GetString("ANALYSIS_SAFETY_STOCK_SCALING"),
			ZeroSales:          v.GetString("ANALYSIS_ZERO_SALES"),
			ValueBasis:         v.GetString("ANALYSIS_VALUE_BASIS"),
			AlertMinMonths:     v.GetInt("ANALYSIS_ALERT_MIN_MONTHS"),
			AlertCoverFactor:   v.GetFloat64("ANALYSIS_ALERT_COVER_FACTOR"),
		},
		Columns: analysis.Columns{
			Sales: analysis.SalesColumns{
				Product:  v.GetString("COLUMN_SALES_PRODUCT"),
				Date:     v.GetString("COLUMN_SALES_DATE"),
				Quantity: v.GetString("COLUMN_SALES_QUANTITY"),
				Price:    v.GetString("COLUMN_SALES_PRICE"),
				Customer: v.GetString("COLUMN_SALES_CUSTOMER"),
				Supplier: v.GetString("COLUMN_SALES_SUPPLIER"),
			},
			Inventory: analysis.InventoryColumns{
				Product:     v.GetString("COLUMN_INVENTORY_PRODUCT"),
				Description: v.GetString("COLUMN_INVENTORY_DESCRIPTION"),
				Balance:     v.GetString("COLUMN_INVENTORY_BALANCE"),
				Cost:        v.GetString("COLUMN_INVENTORY_COST"),
			},
		},
	}
}

// Params builds the run parameters anchored at asOf and validates them.
func (a AnalysisConfig) Params(asOf time.Time) (analysis.Params, error) {
	p := analysis.Params{
		AsOf:               asOf,
		LeadTimeDays:       a.LeadTimeDays,
		CoverageMonths:     a.CoverageMonths,
		SellingDaysPerWeek: a.SellingDaysPerWeek,
		ServiceZ:           a.ServiceZ,
		ABCThresholdA:      a.ABCThresholdA,
		ABCThresholdB:      a.ABCThresholdB,
		XYZThresholdX:      a.XYZThresholdX,
		XYZThresholdY:      a.XYZThresholdY,
		DeviationBasis:     analysis.DeviationBasis(a.DeviationBasis),
		SafetyStockScaling: analysis.SafetyStockScaling(a.SafetyStockScaling),
		ZeroSales:          analysis.ZeroSalesPolicy(a.ZeroSales),
		ValueBasis:         analysis.ValueBasis(a.ValueBasis),
		AlertMinMonths:     a.AlertMinMonths,
		AlertCoverFactor:   a.AlertCoverFactor,
	}
	if err := p.Validate(); err != nil {
		return analysis.Params{}, err
	}
	return p, nil
}

// DriveCredentials returns the inline service-account key, or reads it from
// CredentialsFile. Empty means Drive is not configured.
func (d DriveConfig) DriveCredentials() (string, error) {
	if d.CredentialsJSON != "" || d.CredentialsFile == "" {
		return d.CredentialsJSON, nil
	}
	data, err := os.ReadFile(d.CredentialsFile)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
