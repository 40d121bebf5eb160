package omnirectify

import (
	"context"
	"fmt"
	"image"
	"os"

	"go.viam.com/rdk/cli"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/utils"
	"go.viam.com/utils/rpc"
)

// MachineAccess says how to reach a machine. With no API key the cached viam cli token is used,
// and with no host either the module environment variables are.
type MachineAccess struct {
	Host     string
	APIKeyID string
	APIKey   string
}

// Connect dials the machine described by access.
func Connect(ctx context.Context, access MachineAccess, logger logging.Logger) (robot.Robot, error) {
	switch {
	case access.APIKeyID != "" || access.APIKey != "":
		if access.Host == "" || access.APIKeyID == "" || access.APIKey == "" {
			return nil, fmt.Errorf("need host, api key id and api key together")
		}
		return connectWithAPIKey(ctx, logger, access.Host, access.APIKeyID, access.APIKey)
	case access.Host != "":
		return connectWithCLIToken(ctx, access.Host, logger)
	default:
		return connectFromEnv(ctx, logger)
	}
}

// CameraDependencies collects the machine's cameras.
func CameraDependencies(machine robot.Robot) (resource.Dependencies, error) {
	deps := resource.Dependencies{}

	for _, n := range machine.ResourceNames() {
		if n.API != camera.API {
			continue
		}
		r, err := machine.ResourceByName(n)
		if err != nil {
			return nil, err
		}
		deps[n] = r
	}

	if len(deps) == 0 {
		return nil, fmt.Errorf("machine has no cameras")
	}
	return deps, nil
}

func connectFromEnv(ctx context.Context, logger logging.Logger) (robot.Robot, error) {
	params := []string{}
	for _, pp := range []string{utils.MachineFQDNEnvVar, utils.APIKeyIDEnvVar, utils.APIKeyEnvVar} {
		x := os.Getenv(pp)
		if x == "" {
			return nil, fmt.Errorf("no environment variable for %s", pp)
		}
		params = append(params, x)
	}
	return connectWithAPIKey(ctx, logger, params[0], params[1], params[2])
}

func connectWithAPIKey(ctx context.Context, logger logging.Logger, host, apiKeyID, apiKey string) (robot.Robot, error) {
	return client.New(
		ctx,
		host,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			apiKeyID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: apiKey,
			},
		)),
	)
}

// connectWithCLIToken logs in to a machine by hostname with the token "viam login" caches.
func connectWithCLIToken(ctx context.Context, host string, logger logging.Logger) (robot.Robot, error) {
	if host == "" {
		return nil, fmt.Errorf("need to specify host")
	}

	c, err := cli.ConfigFromCache(nil)
	if err != nil {
		return nil, err
	}

	dopts, err := c.DialOptions()
	if err != nil {
		return nil, err
	}

	return client.New(
		ctx,
		host,
		logger,
		client.WithDialOptions(dopts...),
	)
}

func FindCamera(deps resource.Dependencies, name string) (camera.Camera, error) {
	for nn, r := range deps {
		if nn.ShortName() != name {
			continue
		}
		c, ok := r.(camera.Camera)
		if !ok {
			return nil, fmt.Errorf("%s is a %T, not a camera", name, r)
		}
		return c, nil
	}
	return nil, fmt.Errorf("no camera named %q", name)
}

// GrabImage returns the first image cam produces.
func GrabImage(ctx context.Context, cam camera.Camera, extra map[string]interface{}) (image.Image, error) {
	imgs, _, err := cam.Images(ctx, nil, extra)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%s returned no images", cam.Name().ShortName())
	}
	return imgs[0].Image(ctx)
}
