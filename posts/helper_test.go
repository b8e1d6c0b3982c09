package posts

import "testing"

func TestConcatenateThread(t *testing.T) {
	tests := []struct {
		name   string
		thread []GenericPost
		want   string
	}{
		{
			name:   "multiple posts",
			thread: []GenericPost{{Content: "first"}, {Content: "second"}, {Content: "third"}},
			want:   "first\n\nsecond\n\nthird",
		},
		{
			name:   "single post",
			thread: []GenericPost{{Content: "only"}},
			want:   "only",
		},
		{
			name:   "empty contents are skipped",
			thread: []GenericPost{{Content: "a"}, {Content: ""}, {Content: "b"}},
			want:   "a\n\nb",
		},
		{
			name: "empty thread",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConcatenateThread(GenericThread{Thread: tt.thread})
			if got != tt.want {
				t.Errorf("ConcatenateThread = %q, want %q", got, tt.want)
			}
		})
	}
}
