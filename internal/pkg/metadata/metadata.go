// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package metadata is a thin client for the EC2 instance metadata service.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Client wraps the IMDS client. A missing attribute is reported as an empty
// string, not as an error: callers that need to distinguish must treat empty
// as "attribute absent". The client carries no retry policy of its own.
type Client struct {
	imds *imds.Client
}

// NewClient builds a metadata client against the well-known link-local
// endpoint.
func NewClient() *Client {
	return &Client{
		imds: imds.New(imds.Options{}),
	}
}

// NewClientWithEndpoint builds a metadata client against a custom endpoint.
func NewClientWithEndpoint(endpoint string) *Client {
	return &Client{
		imds: imds.New(imds.Options{
			Endpoint: endpoint,
		}),
	}
}

// GetKey fetches a single metadata attribute.
// https://docs.aws.amazon.com/AWSEC2/latest/UserGuide/instancedata-data-retrieval.html
func (c *Client) GetKey(ctx context.Context, key string) (string, error) {
	resp, err := c.imds.GetMetadata(ctx, &imds.GetMetadataInput{
		Path: key,
	})
	if err != nil {
		if isNotFoundError(err) {
			return "", nil
		}

		return "", fmt.Errorf("failed to fetch %q from IMDS: %w", key, err)
	}

	defer resp.Content.Close() //nolint:errcheck

	v, err := io.ReadAll(resp.Content)

	return string(v), err
}

// LocalIPv4 returns the instance's primary private address.
func (c *Client) LocalIPv4(ctx context.Context) (string, error) {
	return c.GetKey(ctx, "local-ipv4")
}

// InstanceID returns the instance identifier.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	return c.GetKey(ctx, "instance-id")
}

// InstanceType returns the instance type.
func (c *Client) InstanceType(ctx context.Context) (string, error) {
	return c.GetKey(ctx, "instance-type")
}

// AvailabilityZone returns the placement availability zone.
func (c *Client) AvailabilityZone(ctx context.Context) (string, error) {
	return c.GetKey(ctx, "placement/availability-zone")
}

// Region returns the placement region, falling back to the availability
// zone with its final letter stripped when the region attribute is absent.
func (c *Client) Region(ctx context.Context) (string, error) {
	region, err := c.GetKey(ctx, "placement/region")
	if err != nil {
		return "", err
	}

	if region != "" {
		return region, nil
	}

	zone, err := c.AvailabilityZone(ctx)
	if err != nil {
		return "", err
	}

	if zone == "" {
		return "", nil
	}

	return zone[:len(zone)-1], nil
}

// BlockDeviceMappings lists the logical block device mapping: mapping name
// (e.g. "ephemeral0") to logical device name (e.g. "sdb").
func (c *Client) BlockDeviceMappings(ctx context.Context) (map[string]string, error) {
	listing, err := c.GetKey(ctx, "block-device-mapping/")
	if err != nil {
		return nil, err
	}

	mappings := map[string]string{}

	for _, name := range strings.Fields(listing) {
		device, err := c.GetKey(ctx, "block-device-mapping/"+name)
		if err != nil {
			return nil, err
		}

		if device == "" {
			continue
		}

		mappings[name] = device
	}

	return mappings, nil
}

func isNotFoundError(err error) bool {
	var awsErr *smithyhttp.ResponseError

	if errors.As(err, &awsErr) {
		return awsErr.HTTPStatusCode() == http.StatusNotFound
	}

	return false
}
