package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var (
	snsClient     *sns.Client
	snsClientOnce sync.Once
)

// getSNSClient returns a singleton AWS SNS client. Initializes on first
// call using default AWS credentials (IRSA in K8s, env vars locally).
func getSNSClient() *sns.Client {
	snsClientOnce.Do(func() {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}

		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(region),
		)
		if err != nil {
			log.Printf("Warning: failed to load AWS config for SNS: %v (alerting disabled)", err)
			return
		}

		snsClient = sns.NewFromConfig(cfg)
	})
	return snsClient
}

// NotifyJobFailure publishes a scheduler job failure to the alert topic.
// A no-op when SNS_TOPIC_ARN is unset or the client could not initialize;
// alerting must never take down the job that is trying to report.
func NotifyJobFailure(ctx context.Context, jobName string, jobErr error) {
	topicARN := os.Getenv("SNS_TOPIC_ARN")
	if topicARN == "" {
		return
	}
	client := getSNSClient()
	if client == nil {
		return
	}

	subject := fmt.Sprintf("papertrade job failed: %s", jobName)
	message := fmt.Sprintf("Job %s failed: %v", jobName, jobErr)
	_, err := client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		log.Printf("Warning: failed to publish job failure alert: %v", err)
	}
}
