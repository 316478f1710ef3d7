package pfconfig

import (
	"errors"
	"fmt"
	"log/syslog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Variables d'environnement portant les secrets, jamais écrites dans le YAML
const (
	EnvMongoURI     = "MONGODB_URI"
	EnvFormEndpoint = "FORM_ENDPOINT"
)

type Config struct {
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Logger          LoggerConfig    `yaml:"logger"`
	Redis           RedisConfig     `yaml:"redis"`
	Analytics       AnalyticsConfig `yaml:"analytics"`
	Contact         ContactConfig   `yaml:"contact"`
	Profile         ProfileConfig   `yaml:"profile"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

// AnalyticsConfig décrit le registre des visiteurs et la résolution IP/geo
type AnalyticsConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Db         string        `yaml:"db"`
	Uri        string        `yaml:"-"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Path       string        `yaml:"path"`
	Dsn        string        `yaml:"dsn"`
	Cooldown   time.Duration `yaml:"cooldown"`
	IPSource   string        `yaml:"ipsource"`
	IPURL      string        `yaml:"ipurl"`
	Geo        GeoConfig     `yaml:"geo"`
}

type GeoConfig struct {
	Provider string        `yaml:"provider"`
	URL      string        `yaml:"url"`
	MaxMind  string        `yaml:"maxmind"`
	CacheTTL time.Duration `yaml:"cachettl"`
}

type ContactConfig struct {
	Endpoint string `yaml:"-"`
	Captcha  bool   `yaml:"captcha"`
}

type ProfileConfig struct {
	Title      string          `yaml:"title"`
	Name       string          `yaml:"name"`
	Headline   string          `yaml:"headline"`
	Email      string          `yaml:"email"`
	LinkedIn   string          `yaml:"linkedin"`
	GitHub     string          `yaml:"github"`
	Photo      string          `yaml:"photo"`
	Resume     string          `yaml:"resume"`
	ResumeName string          `yaml:"resumename"`
	Summary    string          `yaml:"summary"`
	Skills     []string        `yaml:"skills"`
	Jobs       []JobConfig     `yaml:"jobs"`
	Projects   []ProjectConfig `yaml:"projects"`
	Footer     string          `yaml:"footer"`
	Theme      string          `yaml:"theme"`
}

type JobConfig struct {
	Title   string `yaml:"title"`
	Company string `yaml:"company"`
	Period  string `yaml:"period"`
	Bullets string `yaml:"bullets"`
}

type ProjectConfig struct {
	Title   string `yaml:"title"`
	Icon    string `yaml:"icon"`
	Tech    string `yaml:"tech"`
	Bullets string `yaml:"bullets"`
	Repo    string `yaml:"repo"`
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Production: false,
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Analytics: AnalyticsConfig{
			Enabled:    true,
			Db:         "mongodb",
			Database:   "portfolio",
			Collection: "visitors",
			Cooldown:   4 * time.Hour,
			IPSource:   "beacon",
			IPURL:      "https://api.ipify.org?format=json",
			Geo: GeoConfig{
				Provider: "http",
				URL:      "https://ipapi.co/%s/json/",
				CacheTTL: 24 * time.Hour,
			},
		},
		Contact: ContactConfig{
			Captcha: true,
		},
		Profile: exampleProfile(),
	}

	if filename == "/etc/" {
		example.Listen.Website = "127.0.0.1:8000"
		example.Production = true
		example.Profile.Photo = "/var/lib/portfolio/profile.jpg"
		example.Profile.Resume = "/var/lib/portfolio/resume.pdf"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/portfolio/portfolio.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = "/etc/portfolio/config.yaml"
	}

	return filename, WriteConfigYaml(filename, example)
}

func exampleProfile() ProfileConfig {
	return ProfileConfig{
		Title:      "Shiva Pandey | Portfolio",
		Name:       "Shiva Pandey",
		Headline:   "Data Engineer | Big Data | Cloud | Python",
		Email:      "pandey.shiva623@gmail.com",
		LinkedIn:   "https://www.linkedin.com/in/shivaapandey/",
		GitHub:     "https://github.com/iamshivapandey",
		Photo:      "./shiva.jpg",
		Resume:     "./Shiva_Resume.pdf",
		ResumeName: "Shiva_Pandey_Resume.pdf",
		Summary: "Data Engineer with almost 2 years of experience in building and optimizing big data pipelines using " +
			"**Python, PySpark, AWS, Databricks, Kafka, and Iceberg**.\n" +
			"Skilled in databases, ETL processes, data lakes, data warehousing, migration, and SQL.\n" +
			"Experienced in designing scalable, cloud-native solutions to process large volumes of structured and semi-structured data.",
		Skills: []string{
			"- **Languages:** Python, Java, SQL, C\n" +
				"- **Big Data & Cloud:** PySpark, Kafka, Airflow, Glue, EMR, Lambda, ECS, Fargate\n" +
				"- **Databases:** MySQL, PostgreSQL, Snowflake, ClickHouse",
			"- **Tools:** Git, Docker, Bitbucket, Linux\n" +
				"- **Visualization:** Power BI, Tableau\n" +
				"- **Concepts:** Data Lakes, Iceberg, Data Warehousing, ETL, ELT, Migration",
		},
		Jobs: []JobConfig{
			{
				Title:   "Data Engineer",
				Company: "Demandhelm (Neiron India)",
				Period:  "Oct 2023 – Mar 2025",
				Bullets: "- Built scalable big data pipeline with AWS Glue, PySpark, Iceberg, and Snowflake\n" +
					"- Migrated 350+ ETL jobs from Pandas to PySpark, improving efficiency by 80%\n" +
					"- Led database migration to Apache Iceberg from MySQL/PostgreSQL\n" +
					"- Deployed workloads using AWS ECS Fargate, reducing costs by 70%\n" +
					"- Created marketing pipelines using AMC + Lambda for real-time analytics\n" +
					"- Automated workflows with Airflow on EC2",
			},
			{
				Title:   "Data Engineer",
				Company: "Velotio Technologies",
				Period:  "Apr 2025 – Present",
				Bullets: "- Doing a POC on tools like **Spline**, **DataHub** for tracking Spark job lineage",
			},
		},
		Projects: []ProjectConfig{
			{
				Title: "Real-Time Weather Data Pipeline",
				Icon:  ":sun_behind_small_cloud:",
				Tech:  "Kafka, PySpark, APIs, MySQL, S3, Linux",
				Bullets: "- Developed a weather data pipeline that fetches live data via RapidAPI\n" +
					"- Streamed data to Kafka, processed with PySpark for cleaning & validation\n" +
					"- Loaded clean data into MySQL for analytics dashboards\n" +
					"- Deployed to S3 with versioned archives for traceability",
				Repo: "https://github.com/iamshivapandey/live-weather-data-streaming-pipeline",
			},
			{
				Title: "Pneumonia Detection Web App",
				Icon:  ":lungs:",
				Tech:  "Streamlit, TensorFlow, AWS EC2",
				Bullets: "- Trained a convolutional neural network to classify X-ray images\n" +
					"- Built a clean Streamlit frontend for real-time diagnosis\n" +
					"- Deployed on AWS EC2 with live demo and user input support",
				Repo: "https://github.com/iamshivapandey/Pneumonia-detection-in-chest-X-ray-images",
			},
			{
				Title: "Dockerized Spark Setup",
				Icon:  ":whale:",
				Tech:  "Docker, Spark, Python, Jupyter",
				Bullets: "- Created a fully containerized Spark environment for local dev\n" +
					"- Integrated Python, Spark and Jupyter Notebook inside Docker\n" +
					"- Image published to Docker Hub for easy reuse across teams",
				Repo: "https://github.com/iamshivapandey/pyspark_using_docker",
			},
			{
				Title: "Crypto Twitter Bot",
				Icon:  ":chart_with_upwards_trend:",
				Tech:  "Selenium, Pillow, Twitter API, GitHub Actions",
				Bullets: "- Scraped real-time crypto data and posted daily updates on Twitter\n" +
					"- Auto-generated visual summaries using Pillow\n" +
					"- Scheduled using GitHub Actions & Cron without needing servers",
				Repo: "https://github.com/iamshivapandey/twitter_bot",
			},
		},
		Footer: "*Last updated April 2025*",
		Theme:  "#4f8bf9",
	}
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %v", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %v", err)
	}

	ApplyDefaults(&config)
	return &config, nil
}

// LoadSecrets charge les fichiers .env (absents tolérés) puis applique l'environnement
func LoadSecrets(config *Config, files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("erreur lecture %s: %w", file, err)
		}
	}
	ApplyEnv(config)
	return nil
}

// ApplyEnv remplace les secrets par ceux de l'environnement s'ils existent
func ApplyEnv(config *Config) {
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		config.Analytics.Uri = uri
	}
	if endpoint := os.Getenv(EnvFormEndpoint); endpoint != "" {
		config.Contact.Endpoint = endpoint
	}
}

func ApplyDefaults(config *Config) {
	if config.Listen.Website == "" {
		config.Listen.Website = "0.0.0.0:8080"
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}

	a := &config.Analytics
	if a.Db == "" {
		a.Db = "mongodb"
	}
	if a.Database == "" {
		a.Database = "portfolio"
	}
	if a.Collection == "" {
		a.Collection = "visitors"
	}
	if a.Cooldown == 0 {
		a.Cooldown = 4 * time.Hour
	}
	if a.IPSource == "" {
		a.IPSource = "beacon"
	}
	if a.IPURL == "" {
		a.IPURL = "https://api.ipify.org?format=json"
	}
	if a.Geo.Provider == "" {
		a.Geo.Provider = "http"
	}
	if a.Geo.URL == "" {
		a.Geo.URL = "https://ipapi.co/%s/json/"
	}
	if a.Geo.CacheTTL == 0 {
		a.Geo.CacheTTL = 24 * time.Hour
	}

	if config.Profile.Title == "" {
		config.Profile.Title = config.Profile.Name
	}
	if config.Profile.ResumeName == "" {
		config.Profile.ResumeName = "resume.pdf"
	}
	if config.Profile.Theme == "" {
		config.Profile.Theme = "#4f8bf9"
	}
}

// Validate vérifie la présence des secrets et la cohérence des choix de backend
func Validate(config *Config) error {
	if config.Contact.Endpoint == "" {
		return fmt.Errorf("%s n'est pas défini", EnvFormEndpoint)
	}

	if !config.Analytics.Enabled {
		return nil
	}

	a := config.Analytics
	switch a.Db {
	case "mongodb":
		if a.Uri == "" {
			return fmt.Errorf("%s n'est pas défini", EnvMongoURI)
		}
	case "sqlite":
		if a.Path == "" {
			return fmt.Errorf("analytics.path requis pour sqlite")
		}
	case "mysql":
		if a.Dsn == "" {
			return fmt.Errorf("analytics.dsn requis pour mysql")
		}
	default:
		return fmt.Errorf("le type de database doit etre mongodb, sqlite ou mysql")
	}

	switch a.IPSource {
	case "beacon", "header", "lookup":
	default:
		return fmt.Errorf("analytics.ipsource doit etre beacon, header ou lookup")
	}

	switch a.Geo.Provider {
	case "http":
	case "maxmind":
		if a.Geo.MaxMind == "" {
			return fmt.Errorf("analytics.geo.maxmind requis pour le provider maxmind")
		}
	default:
		return fmt.Errorf("analytics.geo.provider doit etre http ou maxmind")
	}

	if a.Cooldown < 0 {
		return fmt.Errorf("analytics.cooldown doit etre positif")
	}
	return nil
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "portfolio.yaml"
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %v", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Printf("⚠️  Définir %s et %s dans l'environnement ou dans .env\n", EnvMongoURI, EnvFormEndpoint)
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Portfolio version %s", version)
	logPrintf("Mode Production %v", config.Production)
	logPrintf("Profil %s", config.Profile.Name)

	if config.Analytics.Enabled {
		a := config.Analytics
		logPrintf("Analytics activé")
		switch a.Db {
		case "mongodb":
			logPrintf("  • Type mongodb, base %s, collection %s", a.Database, a.Collection)
		case "sqlite":
			logPrintf("  • Type sqlite")
			logPrintf("  • Path %s", a.Path)
		case "mysql":
			logPrintf("  • Type mysql")
		}
		logPrintf("  • Cooldown %s", a.Cooldown)
		logPrintf("  • Source IP %s", a.IPSource)
		logPrintf("  • Geolocalisation %s", a.Geo.Provider)
	} else {
		logPrintf("Analytics désactivé")
	}

	if config.Redis.Addr != "" {
		logPrintf("Cache redis %s", config.Redis.Addr)
	}
	logPrintf("Captcha contact %v", config.Contact.Captcha)

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
		logPrintf("  • Compression %v", config.Logger.File.Compress)
	} else {
		logPrintf("  Log en fichier désactivé")
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	} else {
		logPrintf("  Log en syslog désactivé")
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}
