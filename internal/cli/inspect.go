package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"reqlens/internal/http/stream"
	"reqlens/params"
	"reqlens/query"
	"reqlens/request"

	"github.com/spf13/cobra"
)

type inspectOptions struct {
	scheme      string
	address     string
	port        int
	maxBodySize int64
	resolve     bool
}

func newInspectCmd() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [request-file]",
		Short: "Parse a raw HTTP request and print every view of it",
		Long: `Parse a raw HTTP/1.x request read from a file, or from stdin when the
file is "-", and print the views the inspection server would answer with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return inspect(cmd.OutOrStdout(), in, opts)
		},
	}

	cmd.Flags().StringVar(&opts.scheme, "scheme", "http", "scheme for origin-form targets")
	cmd.Flags().StringVar(&opts.address, "address", "127.0.0.1", "client address to assume")
	cmd.Flags().IntVar(&opts.port, "port", 3000, "client port to assume")
	cmd.Flags().Int64Var(&opts.maxBodySize, "max-body-size", 10<<20, "largest body to buffer")
	cmd.Flags().BoolVar(&opts.resolve, "resolve", false, "reverse resolve the client address")
	return cmd
}

// noResolver answers every lookup with nothing.
type noResolver struct{}

func (noResolver) LookupAddr(context.Context, string) ([]string, error) { return nil, nil }

func inspect(w io.Writer, r io.Reader, opts inspectOptions) error {
	var resolver request.Resolver = noResolver{}
	if opts.resolve {
		resolver = net.DefaultResolver
	}

	remote := &net.TCPAddr{IP: net.ParseIP(opts.address), Port: opts.port}
	hs := stream.New(io.Discard, r, remote, stream.Options{
		Scheme:         opts.scheme,
		MaxBodySize:    opts.maxBodySize,
		Resolver:       resolver,
		ResolveTimeout: 2 * time.Second,
	})

	req, err := hs.ReadRequest()
	if err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(name, value string) {
		fmt.Fprintf(tw, "%s\t%s\n", name, value)
	}

	row("method", req.Method())
	row("uri", req.URI().String())
	row("base", req.Base())
	row("path", req.Path())
	row("protocol", req.Protocol())
	row("address", req.Address())
	row("port", strconv.Itoa(req.Port()))
	if opts.resolve {
		row("hostname", req.Hostname())
	}
	row("isGet", strconv.FormatBool(req.IsGet()))
	row("isPost", strconv.FormatBool(req.IsPost()))
	row("contentType", req.ContentType())
	row("contentEncoding", req.ContentEncoding())
	row("userAgent", req.UserAgent())
	row("referer", req.Referer())
	headers := params.New()
	for name, value := range req.Headers().All() {
		headers.Add(name, value)
	}
	row("headers", query.Encode(headers))
	row("queryKeywords", req.QueryKeywords())
	row("queryParameters", query.EncodeKeywords(req.QueryParameters()))

	body, err := req.Body()
	if err != nil {
		_ = tw.Flush()
		return fmt.Errorf("read body: %w", err)
	}
	row("body", strconv.Quote(string(body)))

	bodyParams, err := req.BodyParameters()
	if err != nil {
		_ = tw.Flush()
		return fmt.Errorf("parse body: %w", err)
	}
	row("bodyParameters", query.EncodeKeywords(bodyParams))

	return tw.Flush()
}
