package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/registry"
)

func TestParsePathActiveSystem(t *testing.T) {
	f, err := registry.ParsePath("/var/log/journal/system.journal")
	require.NoError(t, err)
	require.Equal(t, registry.StatusActive, f.Status.Kind)
	require.Equal(t, registry.SourceSystem, f.Origin.Source.Kind)
	require.False(t, f.Origin.HasMachineID)
	require.Equal(t, "/var/log/journal", f.Dir)
}

func TestParsePathArchivedUser(t *testing.T) {
	path := "/var/log/journal/user-1000@550e8400e29b41d4a716446655440000-3e8-5265c00.journal"
	f, err := registry.ParsePath(path)
	require.NoError(t, err)
	require.Equal(t, registry.StatusArchived, f.Status.Kind)
	require.Equal(t, registry.SourceUser, f.Origin.Source.Kind)
	require.Equal(t, uint32(1000), f.Origin.Source.UID)
	require.Equal(t, uint64(0x3e8), f.Status.HeadSeqnum)
	require.Equal(t, uint64(0x5265c00), f.Status.HeadRealtimeUsec)
}

func TestParsePathDisposed(t *testing.T) {
	path := "/var/log/journal/system@5f1e2a00-7.journal~"
	f, err := registry.ParsePath(path)
	require.NoError(t, err)
	require.Equal(t, registry.StatusDisposed, f.Status.Kind)
	require.Equal(t, uint64(0x5f1e2a00), f.Status.DisposedTimestamp)
	require.Equal(t, uint64(7), f.Status.DisposedNumber)
}

func TestParsePathRemoteHost(t *testing.T) {
	f, err := registry.ParsePath("/var/log/journal/remote/remote-host.example.com.journal")
	require.NoError(t, err)
	require.Equal(t, registry.SourceRemote, f.Origin.Source.Kind)
	require.Equal(t, "host.example.com", f.Origin.Source.Host)
}

func TestParsePathUnknownBasename(t *testing.T) {
	f, err := registry.ParsePath("/var/log/journal/weird-name.journal")
	require.NoError(t, err)
	require.Equal(t, registry.SourceUnknown, f.Origin.Source.Kind)
	require.Equal(t, "weird-name", f.Origin.Source.Raw)
}

func TestParsePathMachineIDAndNamespace(t *testing.T) {
	path := "/var/log/journal/4d8b7e9c-1234-4321-aaaa-0123456789ab.myns/system.journal"
	f, err := registry.ParsePath(path)
	require.NoError(t, err)
	require.True(t, f.Origin.HasMachineID)
	require.Equal(t, "myns", f.Origin.Namespace)
	require.Equal(t, "4d8b7e9c-1234-4321-aaaa-0123456789ab", f.Origin.MachineID.String())
	require.Equal(t, "/var/log/journal", f.Dir)
}

func TestParsePathMachineIDNoNamespace(t *testing.T) {
	path := "/var/log/journal/4d8b7e9c-1234-4321-aaaa-0123456789ab/system.journal"
	f, err := registry.ParsePath(path)
	require.NoError(t, err)
	require.True(t, f.Origin.HasMachineID)
	require.Equal(t, "", f.Origin.Namespace)
}

func TestParsePathRejectsNonAbsolute(t *testing.T) {
	_, err := registry.ParsePath("var/log/journal/system.journal")
	require.Error(t, err)
}

func TestParsePathRejectsBadSuffix(t *testing.T) {
	_, err := registry.ParsePath("/var/log/journal/system.log")
	require.Error(t, err)
}

func TestParsePathRejectsMalformedArchivedSuffix(t *testing.T) {
	_, err := registry.ParsePath("/var/log/journal/system@not-enough-parts.journal")
	require.Error(t, err)
}

func TestIsJournalPath(t *testing.T) {
	require.True(t, registry.IsJournalPath("/a/system.journal"))
	require.True(t, registry.IsJournalPath("/a/system@1-2.journal~"))
	require.False(t, registry.IsJournalPath("/a/system.log"))
}
