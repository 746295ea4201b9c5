package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Document is a decoded API description whose references are still unresolved
type Document struct {
	T *openapi3.T
	// PathOrder lists the path templates in declaration order
	PathOrder []string
	// Raw is the document as JSON, suitable for saving and re-parsing
	Raw []byte
}

// Title returns the info title, or "untitled"
func (d *Document) Title() string {
	if d.T != nil && d.T.Info != nil && strings.TrimSpace(d.T.Info.Title) != "" {
		return d.T.Info.Title
	}
	return "untitled"
}

// SwaggerParser handles retrieval and decoding of Swagger/OpenAPI documents
type SwaggerParser struct {
	client   *http.Client
	logger   *zap.Logger
	probe    bool
	validate bool
}

// Option configures a SwaggerParser
type Option func(*SwaggerParser)

// WithHTTPClient sets the client used to fetch remote documents
func WithHTTPClient(c *http.Client) Option {
	return func(p *SwaggerParser) { p.client = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *SwaggerParser) { p.logger = l }
}

// WithProbing makes LoadURL try the well known swagger locations under the
// given URL when it does not serve a document itself
func WithProbing(enabled bool) Option {
	return func(p *SwaggerParser) { p.probe = enabled }
}

// WithValidation runs the kin-openapi loader and validator over the document
// before it is accepted
func WithValidation(enabled bool) Option {
	return func(p *SwaggerParser) { p.validate = enabled }
}

// NewSwaggerParser creates a new instance of SwaggerParser
func NewSwaggerParser(opts ...Option) *SwaggerParser {
	p := &SwaggerParser{
		client: &http.Client{},
		logger: zap.NewNop(),
		probe:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads a document from an http(s) URL or a local file
func (p *SwaggerParser) Load(ctx context.Context, source string) (*Document, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadURL(ctx, source)
	}
	return p.LoadFile(ctx, source)
}

// LoadFile reads and decodes a document from disk
func (p *SwaggerParser) LoadFile(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	return p.decode(ctx, data)
}

// LoadURL fetches a document, falling back to the common swagger locations
func (p *SwaggerParser) LoadURL(ctx context.Context, baseURL string) (*Document, error) {
	urls := []string{baseURL}
	if p.probe {
		base := strings.TrimSuffix(baseURL, "/")
		urls = append(urls,
			fmt.Sprintf("%s/swagger/v1/swagger.json", base),
			fmt.Sprintf("%s/swagger.json", base),
			fmt.Sprintf("%s/openapi.json", base),
			fmt.Sprintf("%s/v1/swagger.json", base),
			fmt.Sprintf("%s/api/swagger.json", base),
			fmt.Sprintf("%s/api/v1/swagger.json", base),
			fmt.Sprintf("%s/swagger/v1/swagger", base),
			fmt.Sprintf("%s/swagger", base),
		)
	}

	var lastErr error
	for _, url := range urls {
		p.logger.Debug("trying to fetch API description", zap.String("url", url))
		data, err := p.fetch(ctx, url)
		if err != nil {
			lastErr = err
			p.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
			continue
		}
		doc, err := p.decode(ctx, data)
		if err != nil {
			lastErr = err
			p.logger.Debug("decode failed", zap.String("url", url), zap.Error(err))
			continue
		}
		p.logger.Info("fetched API description", zap.String("url", url), zap.String("title", doc.Title()))
		return doc, nil
	}
	return nil, fmt.Errorf("failed to fetch API description from any known URL: %w", lastErr)
}

func (p *SwaggerParser) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (p *SwaggerParser) decode(ctx context.Context, data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if p.validate {
		loader := openapi3.NewLoader()
		resolved, err := loader.LoadFromData(doc.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to load OpenAPI doc: %w", err)
		}
		if err := resolved.Validate(ctx); err != nil {
			return nil, fmt.Errorf("invalid OpenAPI doc: %w", err)
		}
	}
	return doc, nil
}

// Parse decodes a JSON or YAML document. Swagger 2.0 documents are converted
// to OpenAPI 3. References are left unresolved.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty API description")
	}

	raw := data
	if data[0] != '{' {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse API description: %w", err)
		}
		raw = converted
	}
	order, err := pathOrderJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API description: %w", err)
	}

	var version struct {
		Swagger string `json:"swagger"`
		OpenAPI string `json:"openapi"`
	}
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, fmt.Errorf("failed to parse API description: %w", err)
	}

	doc := &Document{PathOrder: order, Raw: raw}
	switch {
	case strings.HasPrefix(version.Swagger, "2"):
		var v2 openapi2.T
		if err := json.Unmarshal(raw, &v2); err != nil {
			return nil, fmt.Errorf("failed to parse Swagger 2.0 doc: %w", err)
		}
		v3, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert Swagger 2.0 doc: %w", err)
		}
		doc.T = v3
	case version.OpenAPI != "":
		var v3 openapi3.T
		if err := json.Unmarshal(raw, &v3); err != nil {
			return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
		}
		doc.T = &v3
	default:
		return nil, fmt.Errorf("document declares neither an openapi nor a swagger version")
	}
	return doc, nil
}

// pathOrderJSON streams the top-level object and collects the keys of "paths"
// in the order they appear
func pathOrderJSON(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if key != "paths" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		open, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := open.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("paths must be an object")
		}
		var order []string
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			path, _ := tok.(string)
			order = append(order, path)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return order, nil
	}
	return nil, nil
}

// yamlToJSON re-encodes a YAML document as JSON, keeping mapping keys in
// their declared order
func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeNode(&buf, &root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return encodeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return encodeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		var value any
		if err := n.Decode(&value); err != nil {
			return err
		}
		out, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(out)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}
