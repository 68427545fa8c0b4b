package bedrock

import (
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/efebarandurmaz/llmfactory/internal/config"
)

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)

// AWSConfig builds an aws.Config from the settings alone. The process
// environment and shared config files are not consulted. Without a key pair
// the credentials are anonymous and signing fails on the first call.
func AWSConfig(creds config.AWSCredentials) (aws.Config, error) {
	if creds.Region != "" && !regionPattern.MatchString(creds.Region) {
		return aws.Config{}, fmt.Errorf("invalid AWS region %q", creds.Region)
	}

	cfg := aws.NewConfig()
	cfg.Region = creds.Region
	if creds.AccessKey != "" || creds.SecretKey != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		)
	} else {
		cfg.Credentials = aws.AnonymousCredentials{}
	}
	return *cfg, nil
}

// NewRuntimeClient returns a Bedrock runtime client for the given credentials.
func NewRuntimeClient(creds config.AWSCredentials) (*bedrockruntime.Client, error) {
	cfg, err := AWSConfig(creds)
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}
