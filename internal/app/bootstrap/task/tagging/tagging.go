// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package tagging republishes the instance's authoritative name through
// the EC2 tagging API and hands identity off to the DNS registration
// collaborator.
package tagging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/backoff"
)

const nameTag = "Name"

// API is the subset of the EC2 API the step uses.
type API interface {
	DescribeTags(ctx context.Context, params *ec2.DescribeTagsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeTagsOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
}

// Publish republishes the instance Name tag until it reads back as the
// expected FQDN or the retry budget runs out. Exhaustion is logged, not
// fatal: the instance keeps working with a stale tag.
func Publish(r *runtime.Runtime) runtime.TaskExecutionFunc {
	if !r.Config().Autoscaled {
		return nil
	}

	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		id := r.State().Identity

		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(id.Region))
		if err != nil {
			logger.Warn("tagging skipped, no API credentials", zap.Error(err))

			return nil
		}

		publishTag(ctx, logger, ec2.NewFromConfig(cfg), r, backoff.Linear{Attempts: 5, Unit: time.Second})

		return writeDNSHandoff(r)
	}
}

// publishTag drives the converge-read-compare-write loop against the API.
func publishTag(ctx context.Context, logger *zap.Logger, api API, r *runtime.Runtime, budget backoff.Linear) {
	id := r.State().Identity

	err := budget.Run(ctx, func(ctx context.Context) error {
		current, err := readNameTag(ctx, api, id.InstanceID)
		if err != nil {
			return err
		}

		if current == id.FQDN {
			return nil
		}

		logger.Info("republishing name tag",
			zap.String("current", current),
			zap.String("expected", id.FQDN),
		)

		_, err = api.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: []string{id.InstanceID},
			Tags: []types.Tag{{
				Key:   aws.String(nameTag),
				Value: aws.String(id.FQDN),
			}},
		})
		if err != nil {
			return err
		}

		return fmt.Errorf("tag not yet propagated")
	})
	if err != nil {
		// Best effort: a stale Name tag does not block convergence.
		logger.Warn("name tag not confirmed within budget", zap.Error(err))
	}
}

func readNameTag(ctx context.Context, api API, instanceID string) (string, error) {
	out, err := api.DescribeTags(ctx, &ec2.DescribeTagsInput{
		Filters: []types.Filter{
			{Name: aws.String("resource-id"), Values: []string{instanceID}},
			{Name: aws.String("key"), Values: []string{nameTag}},
		},
	})
	if err != nil {
		return "", err
	}

	for _, tag := range out.Tags {
		if aws.ToString(tag.Key) == nameTag {
			return aws.ToString(tag.Value), nil
		}
	}

	return "", nil
}

// writeDNSHandoff persists the identity fields the external DNS
// registration script consumes.
func writeDNSHandoff(r *runtime.Runtime) error {
	cfg := r.Config()
	id := r.State().Identity
	path := r.Paths().DNSHandoff

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	content := fmt.Sprintf("TTL=%d\nHOSTED_ZONE_ID=%s\nINSTANCE_ID=%s\nREGION=%s\n",
		cfg.DNSTTL,
		NormalizeZoneID(cfg.HostedZoneID),
		id.InstanceID,
		id.Region,
	)

	return os.WriteFile(path, []byte(content), 0o644)
}

// NormalizeZoneID strips the resource-name prefix some tooling carries on
// hosted zone identifiers.
func NormalizeZoneID(id string) string {
	return strings.TrimPrefix(id, "/hostedzone/")
}
