// Package gitrepo keeps intake templates in one git repository per trainer.
// Every save is a commit, so the full revision history of a template survives.
package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("invalid template")
)

const templatesDir = "templates"

// Template is a named, ordered active-question list a trainer can start a form from.
type Template struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Questions   []intake.Question `json:"questions"`
}

// Revision describes one commit in a trainer's template repository.
type Revision struct {
	Hash      string    `json:"hash"`
	Slug      string    `json:"slug,omitempty"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the latest revision of one template.
type Summary struct {
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	QuestionCount int      `json:"question_count"`
	Revision      Revision `json:"revision"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Save commits the template under templates/{slug}.json. Saving identical
// content returns the existing revision without a new commit.
func (s *Service) Save(trainerID int64, tmpl Template, author string) (Revision, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	slug := Slugify(tmpl.Name)
	if slug == "" {
		return Revision{}, fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if len(tmpl.Questions) == 0 {
		return Revision{}, fmt.Errorf("%w: at least one question is required", ErrInvalidTemplate)
	}
	for _, question := range tmpl.Questions {
		if err := question.Validate(); err != nil {
			return Revision{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
	}

	lock := s.trainerLock(trainerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(trainerID, author)
	if err != nil {
		return Revision{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return Revision{}, fmt.Errorf("marshal template: %w", err)
	}
	payload = append(payload, '\n')

	relPath := path.Join(templatesDir, slug+".json")
	absPath := filepath.Join(worktree.Filesystem.Root(), templatesDir, slug+".json")
	if existing, err := os.ReadFile(absPath); err == nil && bytes.Equal(existing, payload) {
		return latestRevision(repo, slug)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return Revision{}, fmt.Errorf("create templates dir: %w", err)
	}
	if err := os.WriteFile(absPath, payload, 0o644); err != nil {
		return Revision{}, fmt.Errorf("write %s: %w", relPath, err)
	}
	if _, err := worktree.Add(relPath); err != nil {
		return Revision{}, fmt.Errorf("git add %s: %w", relPath, err)
	}

	message := fmt.Sprintf("Save template %s\n\ntemplate: %s\nquestions: %d", tmpl.Name, slug, len(tmpl.Questions))
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: signature(author)})
	if err != nil {
		return Revision{}, fmt.Errorf("commit template: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// List returns the latest revision of every template, most recently saved first.
func (s *Service) List(trainerID int64) ([]Summary, error) {
	lock := s.trainerLock(trainerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(trainerID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	revisions, err := history(repo, 0)
	if err != nil {
		return nil, err
	}
	head, err := headCommit(repo)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	summaries := make([]Summary, 0)
	for _, revision := range revisions {
		if revision.Slug == "" || seen[revision.Slug] {
			continue
		}
		seen[revision.Slug] = true
		tmpl, err := readTemplate(head, revision.Slug)
		if err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Slug:          revision.Slug,
			Name:          tmpl.Name,
			QuestionCount: len(tmpl.Questions),
			Revision:      revision,
		})
	}
	return summaries, nil
}

// Get returns the template saved by the given commit (short or full hash).
func (s *Service) Get(trainerID int64, hash string) (Template, Revision, error) {
	lock := s.trainerLock(trainerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(trainerID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Template{}, Revision{}, ErrTemplateNotFound
	}
	if err != nil {
		return Template{}, Revision{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Template{}, Revision{}, ErrTemplateNotFound
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Template{}, Revision{}, ErrTemplateNotFound
	}
	revision := toRevision(commitObj)
	if revision.Slug == "" {
		return Template{}, Revision{}, ErrTemplateNotFound
	}
	tmpl, err := readTemplate(commitObj, revision.Slug)
	if err != nil {
		return Template{}, Revision{}, err
	}
	return tmpl, revision, nil
}

// History lists commits newest first. limit <= 0 means all.
func (s *Service) History(trainerID int64, limit int) ([]Revision, error) {
	lock := s.trainerLock(trainerID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(trainerID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return history(repo, limit)
}

func (s *Service) repoPath(trainerID int64) string {
	return filepath.Join(s.baseDir, "trainer-"+strconv.FormatInt(trainerID, 10))
}

func (s *Service) trainerLock(trainerID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[trainerID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[trainerID] = lock
	return lock
}

// ensureRepo opens the trainer's repository, creating it with a baseline commit on main.
func (s *Service) ensureRepo(trainerID int64, author string) (*git.Repository, error) {
	repoPath := s.repoPath(trainerID)
	repo, err := git.PlainOpen(repoPath)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(repoPath, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(repoPath, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	readme := fmt.Sprintf("# Intake templates\n\nTrainer %d\n", trainerID)
	if err := os.WriteFile(filepath.Join(repoPath, "README.md"), []byte(readme), 0o644); err != nil {
		return nil, fmt.Errorf("write readme: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return nil, fmt.Errorf("git add readme: %w", err)
	}
	hash, err := worktree.Commit("Initialize intake templates", &git.CommitOptions{Author: signature(author)})
	if err != nil {
		return nil, fmt.Errorf("commit baseline: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return nil, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func history(repo *git.Repository, limit int) ([]Revision, error) {
	head, err := headCommit(repo)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func latestRevision(repo *git.Repository, slug string) (Revision, error) {
	revisions, err := history(repo, 0)
	if err != nil {
		return Revision{}, err
	}
	for _, revision := range revisions {
		if revision.Slug == slug {
			return revision, nil
		}
	}
	return Revision{}, ErrTemplateNotFound
}

func readTemplate(commitObj *object.Commit, slug string) (Template, error) {
	file, err := commitObj.File(path.Join(templatesDir, slug+".json"))
	if err != nil {
		return Template{}, ErrTemplateNotFound
	}
	reader, err := file.Reader()
	if err != nil {
		return Template{}, fmt.Errorf("open template reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Template{}, fmt.Errorf("read template bytes: %w", err)
	}
	var tmpl Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return Template{}, fmt.Errorf("decode template: %w", err)
	}
	return tmpl, nil
}

func toRevision(commitObj *object.Commit) Revision {
	subject, _, _ := strings.Cut(commitObj.Message, "\n")
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Slug:      trailer(commitObj.Message, "template"),
		Message:   subject,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func trailer(message, key string) string {
	for _, line := range strings.Split(message, "\n") {
		if value, ok := strings.CutPrefix(strings.TrimSpace(line), key+":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func signature(author string) *object.Signature {
	if strings.TrimSpace(author) == "" {
		author = "SmartGains"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@trainers.smartgains.local", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

// Slugify lowercases the name and joins alphanumeric runs with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	slug := b.String()
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return slug
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "trainer"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
