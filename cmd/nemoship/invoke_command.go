package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nemoship/internal/audio"
	"nemoship/internal/cloud"
	"nemoship/internal/config"
	"nemoship/internal/services"
)

// maxReplyBytes bounds how much of an endpoint reply is read.
const maxReplyBytes = 4 << 20

func newInvokeCommand(ctx *commandContext) *cobra.Command {
	var endpoint string
	var serverURL string
	var check bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "invoke <wav>",
		Short: "Transcribe a WAV file with the deployed endpoint or a local nemoshipd",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "invoke", "read audio", path, err)
			}
			body, err := buildInvocationBody(cfg, data)
			if err != nil {
				return err
			}

			if check {
				decoder := audio.NewDecoder(audioFormat(cfg))
				buf, err := decoder.Decode(body, cfg.Serve.ContentType)
				if err != nil {
					return services.Wrap(services.ErrValidation, "invoke", "check audio", audio.Kind(err), err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "audio ok: %d samples (%s)\n", buf.Len(), buf.Duration().Round(time.Millisecond))
			}

			var reply []byte
			if strings.TrimSpace(serverURL) != "" {
				reply, err = invokeHTTP(cmd.Context(), serverURL, cfg.Serve.ContentType, body)
			} else {
				name := strings.TrimSpace(endpoint)
				if name == "" {
					name = cfg.Deploy.EndpointName
				}
				reply, err = invokeEndpoint(cmd.Context(), ctx, name, body)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				_, err := fmt.Fprintln(out, string(reply))
				return err
			}
			text, err := extractText(reply, cfg.Serve.TextField)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint name (overrides deploy.endpoint_name)")
	cmd.Flags().StringVar(&serverURL, "url", "", "Base URL of a nemoshipd server instead of SageMaker")
	cmd.Flags().BoolVar(&check, "check", false, "Validate the WAV locally with the server's rules before sending")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw response body")
	return cmd
}

func audioFormat(cfg *config.Config) audio.Format {
	return audio.Format{
		ContentType: cfg.Serve.ContentType,
		Field:       cfg.Serve.AudioField,
		SampleRate:  cfg.Serve.SampleRate,
		Channels:    cfg.Serve.Channels,
	}
}

func buildInvocationBody(cfg *config.Config, wav []byte) ([]byte, error) {
	payload := map[string]string{
		cfg.Serve.AudioField: base64.StdEncoding.EncodeToString(wav),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}

func invokeEndpoint(ctx context.Context, cc *commandContext, name string, body []byte) ([]byte, error) {
	clients, err := cc.awsClients(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := cloud.NewInvoker(clients.Runtime).Invoke(ctx, name, body)
	if err != nil {
		return nil, err
	}
	return inv.Body, nil
}

func invokeHTTP(ctx context.Context, base, contentType string, body []byte) ([]byte, error) {
	target, err := invocationsURL(base)
	if err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "invoke", "post", target, err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var problem struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(reply, &problem) == nil && problem.Error != "" {
			return nil, services.Wrap(services.ErrExternalTool, "invoke",
				fmt.Sprintf("server returned %d", resp.StatusCode), problem.Kind+": "+problem.Error, nil)
		}
		return nil, services.Wrap(services.ErrExternalTool, "invoke",
			fmt.Sprintf("server returned %d", resp.StatusCode), strings.TrimSpace(string(reply)), nil)
	}
	return reply, nil
}

// invocationsURL appends /invocations to a bare base URL.
func invocationsURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse --url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("parse --url: %q needs a scheme and host", base)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/invocations"
	}
	return u.String(), nil
}

func extractText(reply []byte, field string) (string, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(reply, &decoded); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	rawText, ok := decoded[field]
	if !ok {
		return "", errors.New("reply has no " + field + " field")
	}
	var text string
	if err := json.Unmarshal(rawText, &text); err != nil {
		return "", fmt.Errorf("reply %s field is not a string: %w", field, err)
	}
	return text, nil
}
