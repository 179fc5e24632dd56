package config

import (
	"errors"
	"log"
	"runtime"
)

type Collector struct {
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTTopic     string
	MQTTQoS       byte

	KafkaBrokers           []string
	KafkaTopic             string
	KafkaDLQTopic          string
	KafkaTopicPartitions   int
	KafkaDLQPartitions     int
	KafkaReplicationFactor int
	KafkaBatchSize         int
	KafkaBatchBytes        int64
	KafkaBatchTimeoutMs    int
	KafkaCompression       string
	KafkaRequiredAcks      string
	KafkaMaxAttempts       int
	KafkaRetentionMs       int64

	DispatcherCapacity int
	DispatcherMaxBatch int
	DispatcherTickMs   int

	// Vehicle registry is optional: empty RedisAddr disables enrichment.
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RedisNamespace      string
	RedisUsePubSub      bool
	RedisInvalidateChan string

	MetricsAddr string

	ProcessingWorkers int

	Logger *log.Logger
}

func LoadCollector() (*Collector, error) {
	loadDotenv()

	cfg := &Collector{
		MQTTBrokerURL: getenv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "gps-collector"),
		MQTTUsername:  getenv("MQTT_USERNAME", ""),
		MQTTPassword:  getenv("MQTT_PASSWORD", ""),
		MQTTTopic:     getenv("MQTT_TOPIC", "fleet/+/up"),
		MQTTQoS:       getenvQoS("MQTT_QOS", 1),

		KafkaBrokers:           splitBrokers(getenv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:             getenv("KAFKA_TOPIC", "gps-records"),
		KafkaDLQTopic:          getenv("KAFKA_DLQ_TOPIC", "gps-records-dlq"),
		KafkaTopicPartitions:   getenvInt("KAFKA_TOPIC_PARTITIONS", 3),
		KafkaDLQPartitions:     getenvInt("KAFKA_DLQ_PARTITIONS", 1),
		KafkaReplicationFactor: getenvInt("KAFKA_REPLICATION_FACTOR", 1),
		KafkaBatchSize:         getenvInt("KAFKA_BATCH_SIZE", 1000),
		KafkaBatchBytes:        getenvInt64("KAFKA_BATCH_BYTES", 1<<20),
		KafkaBatchTimeoutMs:    getenvInt("KAFKA_BATCH_TIMEOUT_MS", 5),
		KafkaCompression:       getenv("KAFKA_COMPRESSION", "snappy"),
		KafkaRequiredAcks:      getenv("KAFKA_REQUIRED_ACKS", "one"),
		KafkaMaxAttempts:       getenvInt("KAFKA_MAX_ATTEMPTS", 10),
		KafkaRetentionMs:       getenvInt64("KAFKA_RETENTION_MS", 604800000),

		DispatcherCapacity: getenvInt("DISPATCHER_CAPACITY", 10000),
		DispatcherMaxBatch: getenvInt("DISPATCHER_MAX_BATCH", 2000),
		DispatcherTickMs:   getenvInt("DISPATCHER_TICK_MS", 5),

		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		RedisNamespace:      getenv("REDIS_NAMESPACE", "vehicle"),
		RedisUsePubSub:      getenvBool("REDIS_USE_PUBSUB", false),
		RedisInvalidateChan: getenv("REDIS_INVALIDATE_CHANNEL", "vehicles:invalidate"),

		MetricsAddr: getenv("METRICS_ADDR", ":9091"),

		ProcessingWorkers: getenvInt("PROCESSING_WORKERS", runtime.NumCPU()*2),

		Logger: GetLogger(),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS must not be empty")
	}
	if cfg.MQTTTopic == "" {
		return nil, errors.New("MQTT_TOPIC must not be empty")
	}

	return cfg, nil
}
