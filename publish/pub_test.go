package publish

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubjectFor(t *testing.T) {
	require.Equal(t, "aranet.Aranet4_1A2B3", SubjectFor("Aranet4 1A2B3"))
	require.Equal(t, "aranet.c0_ff_ee_00_00_01", SubjectFor("c0:ff:ee:00:00:01"))
	require.Equal(t, "aranet.plain-name", SubjectFor("plain-name"))
}
