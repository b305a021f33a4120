package rules

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
)

// Config is the on-disk form of a rule set.
//
//	seed = 42
//
//	[[rule]]
//	kind = "divide"
//	size = 36000
//
//	[[rule]]
//	kind  = "permutate-pattern"
//	sizes = [4, 8, 12, 16]
//	order = [3, 2, 0, 1]
type Config struct {
	Seed    uint64 `toml:"seed"`
	HasSeed bool   `toml:"-"`
	Rules   Set    `toml:"rule"`
}

// kindAliases maps the short expression names onto rule kinds.
var kindAliases = map[string]Kind{
	"divide":            KindDivide,
	"shuffle":           KindShuffleGlobal,
	"shuffle-global":    KindShuffleGlobal,
	"pattern":           KindShufflePattern,
	"shuffle-pattern":   KindShufflePattern,
	"permute":           KindPermutatePattern,
	"permutate":         KindPermutatePattern,
	"permutate-pattern": KindPermutatePattern,
}

// ParseKind resolves a kind name or alias.
func ParseKind(name string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidRule, "unknown rule kind %q", name)
	}
	return k, nil
}

// Parse decodes a TOML rule set and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse rule config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q", undecoded[0].String())
	}
	cfg.HasSeed = md.IsDefined("seed")

	for i := range cfg.Rules {
		k, err := ParseKind(string(cfg.Rules[i].Kind))
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidRule, "rule %d: %s", i, errors.UserMessage(err))
		}
		cfg.Rules[i].Kind = k
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a TOML rule set from path.
func LoadFile(path string) (*Config, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "rule config %s not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read rule config %s", path)
	}
	return Parse(data)
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode rule config")
	}
	return []byte(sb.String()), nil
}

// ParseExpr parses a comma separated rule expression such as
//
//	divide:36000,shuffle:8000,pattern:64/80/200,permute:4/8/12/16@3/2/0/1
//
// and validates the result.
func ParseExpr(expr string) (Set, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Set{}, nil
	}

	var set Set
	for depth, part := range strings.Split(expr, ",") {
		r, err := parseRuleExpr(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.New(errors.GetCode(err), "rule %d: %s", depth, errors.UserMessage(err))
		}
		set = append(set, r)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func parseRuleExpr(s string) (Rule, error) {
	name, args, ok := strings.Cut(s, ":")
	if !ok {
		return Rule{}, errors.New(errors.ErrCodeInvalidRule, "missing ':' in %q", s)
	}
	kind, err := ParseKind(name)
	if err != nil {
		return Rule{}, err
	}

	switch kind {
	case KindDivide, KindShuffleGlobal:
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil {
			return Rule{}, errors.New(errors.ErrCodeInvalidChunkSize, "invalid chunk size %q", args)
		}
		return Rule{Kind: kind, ChunkSize: n}, nil
	case KindShufflePattern:
		sizes, err := parseInts(args)
		if err != nil {
			return Rule{}, err
		}
		return ShufflePattern(sizes...), nil
	default:
		sizesPart, orderPart, ok := strings.Cut(args, "@")
		if !ok {
			return Rule{}, errors.New(errors.ErrCodeInvalidPermutation, "permute rule %q needs sizes@order", s)
		}
		sizes, err := parseInts(sizesPart)
		if err != nil {
			return Rule{}, err
		}
		order, err := parseInts(orderPart)
		if err != nil {
			return Rule{}, err
		}
		return PermutatePattern(sizes, order), nil
	}
}

func parseInts(s string) ([]int, error) {
	fields := strings.Split(s, "/")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidRule, "invalid number %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}
