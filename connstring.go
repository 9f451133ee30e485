package ensemble

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConnectionParams is the parsed form of a connection string:
// scheme://host[,host...][/chroot][?opt=val&...].
type ConnectionParams struct {
	Scheme         string
	Hosts          []string
	Chroot         string
	RandomizeHosts bool
	ReadOnly       bool
	Timeout        time.Duration
}

const defaultSessionTimeout = 30 * time.Second

func defaultConnectionParams() ConnectionParams {
	return ConnectionParams{
		Scheme:         "zk",
		RandomizeHosts: true,
		ReadOnly:       false,
		Timeout:        defaultSessionTimeout,
	}
}

// ParseConnectionString parses scheme://host[,host...][/chroot][?opt=val&...].
// Unknown query keys and empty values are hard errors.
func ParseConnectionString(s string) (ConnectionParams, error) {
	p := defaultConnectionParams()

	schemeIdx := strings.Index(s, "://")
	if schemeIdx < 0 {
		return ConnectionParams{}, InvalidArguments("connection string missing scheme://: " + s)
	}
	p.Scheme = s[:schemeIdx]
	if p.Scheme == "" {
		return ConnectionParams{}, InvalidArguments("connection string scheme is empty")
	}
	rest := s[schemeIdx+3:]

	// Split off the query string first, so chroot parsing doesn't see
	// '?' embedded in it.
	var query string
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		query = rest[q+1:]
		rest = rest[:q]
	}

	// Split off the chroot (first '/' after the host list).
	hostPart := rest
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPart = rest[:slash]
		p.Chroot = rest[slash:]
		if len(p.Chroot) > 1 && strings.HasSuffix(p.Chroot, "/") {
			return ConnectionParams{}, InvalidArguments("chroot must not have a trailing '/': " + p.Chroot)
		}
	}
	if hostPart == "" {
		return ConnectionParams{}, InvalidArguments("connection string has no hosts: " + s)
	}
	p.Hosts = strings.Split(hostPart, ",")
	for _, h := range p.Hosts {
		if strings.TrimSpace(h) == "" {
			return ConnectionParams{}, InvalidArguments("connection string has an empty host entry: " + s)
		}
	}

	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return ConnectionParams{}, wrapError(KindInvalidArguments, "malformed query string", err)
		}
		if err := applyOptions(&p, values); err != nil {
			return ConnectionParams{}, err
		}
	}

	return p, nil
}

func applyOptions(p *ConnectionParams, values url.Values) error {
	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			return InvalidArguments("connection string option has an empty value: " + key)
		}
		val := vals[0]
		switch key {
		case "randomize_hosts":
			b, err := parseBool(val)
			if err != nil {
				return InvalidArguments("randomize_hosts: " + err.Error())
			}
			p.RandomizeHosts = b
		case "read_only":
			b, err := parseBool(val)
			if err != nil {
				return InvalidArguments("read_only: " + err.Error())
			}
			p.ReadOnly = b
		case "timeout":
			secs, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return InvalidArguments("timeout: " + err.Error())
			}
			p.Timeout = time.Duration(secs * float64(time.Second))
		default:
			return InvalidArguments("unknown connection string option: " + key)
		}
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "t":
		return true, nil
	case "false", "0", "f":
		return false, nil
	default:
		return false, InvalidArguments("not a boolean: " + s)
	}
}

// String re-serializes p. Parsing the result again produces an equal
// ConnectionParams.
func (p ConnectionParams) String() string {
	var b strings.Builder
	b.WriteString(p.Scheme)
	b.WriteString("://")
	b.WriteString(strings.Join(p.Hosts, ","))
	b.WriteString(p.Chroot)

	opts := map[string]string{
		"randomize_hosts": strconv.FormatBool(p.RandomizeHosts),
		"read_only":       strconv.FormatBool(p.ReadOnly),
		"timeout":         strconv.FormatFloat(p.Timeout.Seconds(), 'g', -1, 64),
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(opts[k])
	}
	return b.String()
}
