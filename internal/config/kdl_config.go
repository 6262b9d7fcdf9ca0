package config

import (
	"fmt"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// parseKDL reads a .trigrep.kdl document over the defaults:
//
//	search {
//	    print_line_numbers false
//	    max_count 5
//	}
//	index {
//	    compression "zstd"
//	    max_file_size "2MB"
//	    exclude "**/testdata/**" "**/*.pb.go"
//	}
//	metrics { file "/var/lib/node_exporter/trigrep.prom" }
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "verbose":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.Verbose = b
					}
				case "print_line_numbers":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.PrintLineNumbers = b
					}
				case "just_filter":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.JustFilter = b
					}
				case "ignore_case":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.IgnoreCase = b
					}
				case "max_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxCount = v
					}
				case "read_buffer_size":
					if v, ok := sizeArg(cn); ok {
						cfg.Search.ReadBufferSize = v
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "compression":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.Compression = s
					}
				case "chunk_docs":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.ChunkDocs = v
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.Workers = v
					}
				case "max_file_size":
					if v, ok := sizeArg(cn); ok {
						cfg.Index.MaxFileSize = v
					}
				case "skip_duplicates":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.SkipDuplicates = b
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "include":
					cfg.Index.Include = collectStringArgs(cn)
				case "exclude":
					cfg.Index.Exclude = collectStringArgs(cn)
				}
			}
		case "metrics":
			for _, cn := range n.Children {
				assignSimpleString(cn, "file", func(v string) { cfg.Metrics.File = v })
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// sizeArg accepts a plain byte count or a string such as "10MB".
func sizeArg(n *document.Node) (int64, bool) {
	if v, ok := firstIntArg(n); ok {
		return int64(v), true
	}
	if s, ok := firstStringArg(n); ok {
		if sz, err := parseSize(s); err == nil {
			return sz, true
		}
	}
	return 0, false
}

// collectStringArgs reads inline arguments (exclude "a" "b") or, failing
// that, a block of children (exclude { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// a bare child node's name is the value
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
