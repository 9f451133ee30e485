package ensemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionStringBasic(t *testing.T) {
	p, err := ParseConnectionString("ens://host1:2181,host2:2181/app")
	require.NoError(t, err)
	assert.Equal(t, "ens", p.Scheme)
	assert.Equal(t, []string{"host1:2181", "host2:2181"}, p.Hosts)
	assert.Equal(t, "/app", p.Chroot)
	assert.True(t, p.RandomizeHosts)
	assert.Equal(t, defaultSessionTimeout, p.Timeout)
}

func TestParseConnectionStringOptions(t *testing.T) {
	p, err := ParseConnectionString("ens://host1?randomize_hosts=false&read_only=true&timeout=5")
	require.NoError(t, err)
	assert.False(t, p.RandomizeHosts)
	assert.True(t, p.ReadOnly)
	assert.Equal(t, 5*time.Second, p.Timeout)
}

func TestParseConnectionStringErrors(t *testing.T) {
	cases := []string{
		"host1:2181",            // missing scheme
		"ens://",                // no hosts
		"ens://host1,,host2",    // empty host entry
		"ens://host1/app/",      // trailing slash chroot
		"ens://host1?bogus=1",   // unknown option
		"ens://host1?timeout=x", // bad timeout
	}
	for _, s := range cases {
		_, err := ParseConnectionString(s)
		assert.Errorf(t, err, "expected error for %q", s)
	}
}

func TestConnectionParamsRoundTrip(t *testing.T) {
	p, err := ParseConnectionString("ens://host1,host2/app?randomize_hosts=false&read_only=true&timeout=12")
	require.NoError(t, err)

	reparsed, err := ParseConnectionString(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, reparsed)
}
