package config

import (
	"errors"
	"log"
	"runtime"
	"time"
)

type RTLoader struct {
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	Workers      int
	AckBatchSize int

	Logger *log.Logger
}

func LoadRTLoader() (*RTLoader, error) {
	loadDotenv()

	cfg := &RTLoader{
		KafkaBrokers: splitBrokers(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID: getenv("KAFKA_GROUP_ID", "gps-rt-loader"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "gps-records"),

		InfluxURL:    getenv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "fleet"),
		InfluxBucket: getenv("INFLUX_BUCKET", "telemetry"),

		Workers:      getenvInt("PROCESSING_WORKERS", runtime.NumCPU()*2),
		AckBatchSize: getenvInt("KAFKA_ACK_BATCH_SIZE", 500),

		Logger: GetLogger(),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS must not be empty")
	}
	if cfg.InfluxToken == "" {
		return nil, errors.New("INFLUX_TOKEN must not be empty")
	}

	return cfg, nil
}

type BatchLoader struct {
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string

	BatchMaxRecords  int
	BatchMaxBytes    int64
	BatchMaxInterval time.Duration
	ParquetCodec     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseTLS    bool
	MinioBucket    string
	MinioBasePath  string

	Logger *log.Logger
}

func LoadBatchLoader() (*BatchLoader, error) {
	loadDotenv()

	cfg := &BatchLoader{
		KafkaBrokers: splitBrokers(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaGroupID: getenv("KAFKA_GROUP_ID", "gps-batch-loader"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "gps-records"),

		BatchMaxRecords:  getenvInt("BATCH_MAX_RECORDS", 50000),
		BatchMaxBytes:    getenvInt64("BATCH_MAX_BYTES", 64<<20),
		BatchMaxInterval: time.Duration(getenvInt("BATCH_MAX_INTERVAL_S", 300)) * time.Second,
		ParquetCodec:     getenv("PARQUET_CODEC", "SNAPPY"),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioUseTLS:    getenvBool("MINIO_USE_TLS", false),
		MinioBucket:    getenv("MINIO_BUCKET", "fleet-telemetry"),
		MinioBasePath:  getenv("MINIO_BASE_PATH", "bronze/gps"),

		Logger: GetLogger(),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS must not be empty")
	}
	if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return nil, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY must not be empty")
	}

	return cfg, nil
}

type Console struct {
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTTopic     string
	MQTTQoS       byte

	Logger *log.Logger
}

func LoadConsole() *Console {
	loadDotenv()

	return &Console{
		MQTTBrokerURL: getenv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "gps-console"),
		MQTTUsername:  getenv("MQTT_USERNAME", ""),
		MQTTPassword:  getenv("MQTT_PASSWORD", ""),
		MQTTTopic:     getenv("MQTT_TOPIC", "fleet/+/up"),
		MQTTQoS:       getenvQoS("MQTT_QOS", 1),

		Logger: GetLogger(),
	}
}
