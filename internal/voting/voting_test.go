package voting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyTransitions(t *testing.T) {
	cases := []struct {
		name      string
		current   Type
		requested Type
		want      Transition
	}{
		{
			name:      "first upvote inserts",
			current:   None,
			requested: Upvote,
			want:      Transition{Op: OpInsert, UpvoteDelta: 1, Result: Upvote},
		},
		{
			name:      "first downvote inserts",
			current:   None,
			requested: Downvote,
			want:      Transition{Op: OpInsert, DownvoteDelta: 1, Result: Downvote},
		},
		{
			name:      "repeated upvote toggles off",
			current:   Upvote,
			requested: Upvote,
			want:      Transition{Op: OpRemove, UpvoteDelta: -1, Result: None},
		},
		{
			name:      "repeated downvote toggles off",
			current:   Downvote,
			requested: Downvote,
			want:      Transition{Op: OpRemove, DownvoteDelta: -1, Result: None},
		},
		{
			name:      "upvote to downvote switches",
			current:   Upvote,
			requested: Downvote,
			want:      Transition{Op: OpSwitch, UpvoteDelta: -1, DownvoteDelta: 1, Result: Downvote},
		},
		{
			name:      "downvote to upvote switches",
			current:   Downvote,
			requested: Upvote,
			want:      Transition{Op: OpSwitch, UpvoteDelta: 1, DownvoteDelta: -1, Result: Upvote},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Apply(tc.current, tc.requested))
		})
	}
}

func TestApplySequenceNetsToZero(t *testing.T) {
	// Any vote followed by the same vote leaves the counters untouched.
	for _, requested := range []Type{Upvote, Downvote} {
		first := Apply(None, requested)
		second := Apply(first.Result, requested)
		require.Equal(t, 0, first.UpvoteDelta+second.UpvoteDelta)
		require.Equal(t, 0, first.DownvoteDelta+second.DownvoteDelta)
		require.Equal(t, None, second.Result)
	}
}

func TestValidType(t *testing.T) {
	require.True(t, ValidType("upvote"))
	require.True(t, ValidType("downvote"))
	require.False(t, ValidType(""))
	require.False(t, ValidType("sideways"))
}
