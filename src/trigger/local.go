package trigger

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// FromRepository describes a manual dispatch of the repository at dir:
// the checked-out branch (or the tag pointing at HEAD when detached) and the
// HEAD commit.
func FromRepository(dir string) (Event, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Event{}, fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return Event{}, fmt.Errorf("getting HEAD: %w", err)
	}

	ev := Event{
		Kind:   WorkflowDispatch,
		Commit: head.Hash().String(),
	}
	if head.Name().IsBranch() {
		ev.Branch = head.Name().Short()
		return ev, nil
	}

	// Detached HEAD: look for a tag on the commit.
	tags, err := repo.Tags()
	if err != nil {
		return ev, nil
	}
	defer tags.Close()
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObj, tErr := repo.TagObject(hash); tErr == nil {
			hash = tagObj.Target
		}
		if hash == head.Hash() {
			ev.Tag = ref.Name().Short()
			return storer.ErrStop
		}
		return nil
	})
	return ev, nil
}
