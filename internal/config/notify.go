package config

import "time"

// NotifyConfig forwards ETA updates for tracked shipments to an SNS topic.
// Publishing is off while TopicARN is empty.
type NotifyConfig struct {
	SNSTopicARN string        `yaml:"sns_topic_arn"`
	Region      string        `yaml:"region"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int           `yaml:"max_in_flight"`
}

func loadNotifyConfig() *NotifyConfig {
	return &NotifyConfig{
		SNSTopicARN: getEnv("ETA_UPDATES_SNS_TOPIC_ARN", ""),
		Region:      getEnv("AWS_SNS_REGION", getEnv("AWS_S3_REGION", "us-east-1")),
		Timeout:     getEnvAsDuration("ETA_UPDATES_PUBLISH_TIMEOUT", 5*time.Second),
		MaxInFlight: getEnvAsInt("ETA_UPDATES_MAX_IN_FLIGHT", 64),
	}
}

func (n *NotifyConfig) Enabled() bool {
	return n.SNSTopicARN != ""
}
