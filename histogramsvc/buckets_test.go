package histogramsvc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecomposeBucketsAlignsAndSizesToTarget(t *testing.T) {
	reqs := decomposeBuckets(5, 65, []string{"PRIORITY"}, "*", 1)
	require.Len(t, reqs, 1)
	require.Equal(t, uint32(0), reqs[0].StartSec)
	require.Equal(t, uint32(64), reqs[0].EndSec)
}

func TestDecomposeBucketsRespectsDefaultTarget(t *testing.T) {
	reqs := decomposeBuckets(0, 300, nil, "*", 0)
	require.NotEmpty(t, reqs)
	for i := 1; i < len(reqs); i++ {
		require.Equal(t, reqs[i-1].EndSec, reqs[i].StartSec)
	}
	require.Equal(t, uint32(0), reqs[0].StartSec)
	require.Equal(t, uint32(300), reqs[len(reqs)-1].EndSec)
}

func TestDecomposeBucketsEmptyForInvertedRange(t *testing.T) {
	require.Nil(t, decomposeBuckets(60, 60, nil, "*", 10))
	require.Nil(t, decomposeBuckets(60, 0, nil, "*", 10))
}
