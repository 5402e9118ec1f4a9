package dal

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"social_distance/shared"
)

const schemaVer = 1

//go:embed scripts/*
var scripts embed.FS

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_repo.go -package mocks social_distance/dal IRepo

type IRepo interface {
	InitUpdateDb()

	AddUser(username, pwHash string) (int64, error)
	GetUser(username string) (*User, error)

	AddAuthor(author *Author) error
	UpdateAuthorProfile(author *Author) error
	GetAuthor(id string) (*Author, error)
	GetAuthorByUrl(url string) (*Author, error)
	GetAuthorByUserId(userId int64) (*Author, error)
	FindAuthors(id, url string) ([]*Author, error)
	GetInternalAuthorsPage(offset, limit int) ([]*Author, int, error)

	AddFollow(follow *Follow) error
	GetFollow(objectId, actorId string) (*Follow, error)
	GetFollowById(id string) (*Follow, error)
	GetFollowsByActor(actorId string) ([]*Follow, error)
	GetFollowerAuthors(objectId string, onlyAccepted bool) ([]*Author, error)
	GetFriendAuthors(authorId string) ([]*Author, error)
	SetFollowStatus(id, status string) error
	DeleteFollow(id string) error
	DeleteFollows(ids []string) error

	AddInboxObject(obj *InboxObject) error
	GetInboxObjectsPage(authorId string, offset, limit int) ([]*InboxObject, int, error)
	GetInboxObject(authorId, id string) (*InboxObject, error)
	DeleteInboxObject(authorId, id string) error

	UpsertNode(node *Node) error
	GetNodes() ([]*Node, error)
	GetNode(id int64) (*Node, error)

	AddPost(post *Post) error
	UpdatePost(post *Post) error
	GetPost(id string) (*Post, error)
	DeletePost(id string) error
	GetPostsByAuthorPage(authorId string, offset, limit int) ([]*Post, int, error)

	AddComment(comment *Comment) error
	GetComment(id string) (*Comment, error)
	GetCommentsByPostPage(postId string, offset, limit int) ([]*Comment, int, error)
	CountComments(postId string) (int, error)

	AddLikeIfNew(like *Like) (isNew bool, err error)
	GetLike(id string) (*Like, error)
	GetLikesForObject(objectUrl string) ([]*Like, error)
	GetLikesByAuthor(authorId string) ([]*Like, error)

	AddGithubEventIfNew(ev *GithubEvent) (isNew bool, err error)
	GetGithubEventsByUsername(username string) ([]*GithubEvent, error)
}

type Repo struct {
	cfg    *shared.Config
	logger shared.ILogger
	db     *sql.DB
	muDb   sync.RWMutex
}

func NewRepo(cfg *shared.Config, logger shared.ILogger) IRepo {

	var err error
	var db *sql.DB

	// _synchronous=1 is "normal"
	cstr := "file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=1&_busy_timeout=5000"
	db, err = sql.Open("sqlite3", fmt.Sprintf(cstr, cfg.DbFile))
	if err != nil {
		logger.Errorf("Failed to open/create DB file: %s: %v", cfg.DbFile, err)
		panic(err)
	}

	repo := Repo{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	return &repo
}

// Both flavors count: a unique index (2067) and a primary key (1555).
func isDuplicateKey(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}

func (repo *Repo) InitUpdateDb() {

	dbVer := 0
	sysParamsExists := false
	var err error
	var rows *sql.Rows

	rows, err = repo.db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name='sys_params'")
	if err != nil {
		repo.logger.Errorf("Failed to check if 'sys_params' table exists: %v", err)
		panic(err)
	}
	for rows.Next() {
		sysParamsExists = true
	}
	_ = rows.Close()
	if !sysParamsExists {
		repo.logger.Printf("Database appears to be empty; current schema version is %d", schemaVer)
	} else {
		row := repo.db.QueryRow("SELECT val FROM sys_params WHERE name='schema_ver'")
		if err = row.Scan(&dbVer); err != nil {
			repo.logger.Errorf("Failed to query schema version: %v", err)
			panic(err)
		}
		repo.logger.Printf("Database is at version %d; current schema version is %d", dbVer, schemaVer)
	}
	for i := dbVer; i < schemaVer; i += 1 {
		nextVer := i + 1
		fn := fmt.Sprintf("scripts/create-%02d.sql", nextVer)
		repo.logger.Printf("Running %s", fn)
		var sqlBytes []byte
		if sqlBytes, err = scripts.ReadFile(fn); err != nil {
			repo.logger.Errorf("Failed to read init script %s: %v", fn, err)
			panic(err)
		}
		sqlStr := string(sqlBytes)
		if _, err = repo.db.Exec(sqlStr); err != nil {
			repo.logger.Errorf("Failed to execute init script %s: %v", fn, err)
			panic(err)
		}
		_, err = repo.db.Exec("UPDATE sys_params SET val=? WHERE name='schema_ver'", nextVer)
		if err != nil {
			repo.logger.Errorf("Failed to update schema_ver to %d: %v", nextVer, err)
			panic(err)
		}
	}

	repo.mustSyncNodes()
}

// Nodes are administratively configured; every start reconciles the table
// with what the config file says.
func (repo *Repo) mustSyncNodes() {
	for _, nc := range repo.cfg.Nodes {
		err := repo.UpsertNode(&Node{
			Name:          nc.Name,
			HostUrl:       nc.HostUrl,
			Username:      nc.Username,
			Password:      nc.Password,
			InboxUsername: nc.InboxUsername,
			InboxPassword: nc.InboxPassword,
		})
		if err != nil {
			repo.logger.Errorf("Failed to sync node '%s': %v", nc.Name, err)
			panic(err)
		}
	}
}

// === Users ==============================================================

func (repo *Repo) AddUser(username, pwHash string) (int64, error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	res, err := repo.db.Exec(`INSERT INTO users (created_at, username, pw_hash) VALUES(?, ?, ?)`,
		time.Now().UTC(), username, pwHash)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, shared.Errorf(shared.ErrConflict, "user '%s' already exists", username)
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (repo *Repo) GetUser(username string) (*User, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT id, created_at, username, pw_hash FROM users WHERE username=?`, username)
	var res User
	err := row.Scan(&res.Id, &res.CreatedAt, &res.Username, &res.PwHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// === Authors ============================================================

const authorCols = `id, user_id, is_internal, display_name, github_url, profile_image, url, host, created_at`

func scanAuthor(row interface{ Scan(...any) error }) (*Author, error) {
	var res Author
	err := row.Scan(&res.Id, &res.UserId, &res.IsInternal, &res.DisplayName, &res.GithubUrl,
		&res.ProfileImage, &res.Url, &res.Host, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) AddAuthor(author *Author) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO authors
		(id, user_id, is_internal, display_name, github_url, profile_image, url, host, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		author.Id, author.UserId, author.IsInternal, author.DisplayName, author.GithubUrl,
		author.ProfileImage, author.Url, author.Host, author.CreatedAt)
	if err != nil && isDuplicateKey(err) {
		return shared.Errorf(shared.ErrConflict, "author '%s' already exists", author.Id)
	}
	return err
}

func (repo *Repo) UpdateAuthorProfile(author *Author) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE authors SET display_name=?, github_url=?, profile_image=? WHERE id=?`,
		author.DisplayName, author.GithubUrl, author.ProfileImage, author.Id)
	return err
}

func (repo *Repo) GetAuthor(id string) (*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	return repo.getAuthor(id)
}

func (repo *Repo) getAuthor(id string) (*Author, error) {
	row := repo.db.QueryRow(`SELECT `+authorCols+` FROM authors WHERE id=?`, id)
	res, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func (repo *Repo) GetAuthorByUrl(url string) (*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT `+authorCols+` FROM authors WHERE url=?`, url)
	res, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func (repo *Repo) GetAuthorByUserId(userId int64) (*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT `+authorCols+` FROM authors WHERE user_id=?`, userId)
	res, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

// FindAuthors returns every author whose id or url matches. More than one
// result means a uniqueness invariant is already broken; the caller decides
// how loudly to fail.
func (repo *Repo) FindAuthors(id, url string) ([]*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT `+authorCols+` FROM authors WHERE id=? OR url=?`, id, url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readAuthors(rows)
}

func (repo *Repo) GetInternalAuthorsPage(offset, limit int) ([]*Author, int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	var total int
	row := repo.db.QueryRow(`SELECT COUNT(*) FROM authors WHERE is_internal=1`)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := repo.db.Query(`SELECT `+authorCols+` FROM authors WHERE is_internal=1
		ORDER BY created_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res, err := readAuthors(rows)
	return res, total, err
}

func readAuthors(rows *sql.Rows) ([]*Author, error) {
	res := make([]*Author, 0)
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// === Follows ============================================================

func (repo *Repo) AddFollow(follow *Follow) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO follows (id, summary, status, object_id, actor_id, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		follow.Id, follow.Summary, follow.Status, follow.ObjectId, follow.ActorId, follow.CreatedAt)
	if err != nil && isDuplicateKey(err) {
		// The unique index on (object_id, actor_id) is the only safety net
		// for two concurrent creates of the same edge.
		return shared.Errorf(shared.ErrConflict,
			"follow edge already exists for object %s, actor %s", follow.ObjectId, follow.ActorId)
	}
	return err
}

func (repo *Repo) GetFollow(objectId, actorId string) (*Follow, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, summary, status, object_id, actor_id, created_at
		FROM follows WHERE object_id=? AND actor_id=?`, objectId, actorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	follows, err := readFollows(rows)
	if err != nil {
		return nil, err
	}
	if len(follows) == 0 {
		return nil, nil
	}
	if len(follows) > 1 {
		return nil, shared.Errorf(shared.ErrAmbiguousState,
			"%d follow edges exist for object %s, actor %s", len(follows), objectId, actorId)
	}
	return follows[0], nil
}

func (repo *Repo) GetFollowById(id string) (*Follow, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT id, summary, status, object_id, actor_id, created_at
		FROM follows WHERE id=?`, id)
	var res Follow
	err := row.Scan(&res.Id, &res.Summary, &res.Status, &res.ObjectId, &res.ActorId, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) GetFollowsByActor(actorId string) ([]*Follow, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, summary, status, object_id, actor_id, created_at
		FROM follows WHERE actor_id=? ORDER BY created_at`, actorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readFollows(rows)
}

func readFollows(rows *sql.Rows) ([]*Follow, error) {
	res := make([]*Follow, 0)
	for rows.Next() {
		f := Follow{}
		err := rows.Scan(&f.Id, &f.Summary, &f.Status, &f.ObjectId, &f.ActorId, &f.CreatedAt)
		if err != nil {
			return nil, err
		}
		res = append(res, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (repo *Repo) GetFollowerAuthors(objectId string, onlyAccepted bool) ([]*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	query := `SELECT ` + prefixCols("authors", authorCols) + ` FROM authors
		JOIN follows ON follows.actor_id=authors.id AND follows.object_id=?`
	if onlyAccepted {
		query += ` WHERE follows.status='` + FollowAccepted + `'`
	}
	rows, err := repo.db.Query(query, objectId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readAuthors(rows)
}

// GetFriendAuthors returns authors with an accepted follow edge in both
// directions relative to the given author.
func (repo *Repo) GetFriendAuthors(authorId string) ([]*Author, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	query := `SELECT ` + prefixCols("authors", authorCols) + ` FROM authors
		JOIN follows incoming ON incoming.actor_id=authors.id AND incoming.object_id=?
			AND incoming.status='` + FollowAccepted + `'
		JOIN follows outgoing ON outgoing.object_id=authors.id AND outgoing.actor_id=?
			AND outgoing.status='` + FollowAccepted + `'`
	rows, err := repo.db.Query(query, authorId, authorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readAuthors(rows)
}

func (repo *Repo) SetFollowStatus(id, status string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE follows SET status=? WHERE id=?`, status, id)
	return err
}

func (repo *Repo) DeleteFollow(id string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	res, err := repo.db.Exec(`DELETE FROM follows WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf(shared.ErrNotFound, "follow %s does not exist", id)
	}
	return nil
}

// DeleteFollows removes a batch of revoked edges in one transaction. The
// status guard keeps the read-decide-delete honest: an edge whose status
// changed since the caller decided is left alone.
func (repo *Repo) DeleteFollows(ids []string) error {

	if len(ids) == 0 {
		return nil
	}

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	tx, err := repo.db.Begin()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err = tx.Exec(`DELETE FROM follows WHERE id=? AND status=?`, id, FollowAccepted); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// === Inbox objects ======================================================

func (repo *Repo) AddInboxObject(obj *InboxObject) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO inbox_objects (id, author_id, kind, content_id, created_at)
		VALUES(?, ?, ?, ?, ?)`,
		obj.Id, obj.AuthorId, obj.Kind, obj.ContentId, obj.CreatedAt)
	return err
}

func (repo *Repo) GetInboxObjectsPage(authorId string, offset, limit int) ([]*InboxObject, int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	var total int
	row := repo.db.QueryRow(`SELECT COUNT(*) FROM inbox_objects WHERE author_id=?`, authorId)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := repo.db.Query(`SELECT id, author_id, kind, content_id, created_at
		FROM inbox_objects WHERE author_id=? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		authorId, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	res := make([]*InboxObject, 0)
	for rows.Next() {
		obj := InboxObject{}
		err = rows.Scan(&obj.Id, &obj.AuthorId, &obj.Kind, &obj.ContentId, &obj.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, &obj)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (repo *Repo) GetInboxObject(authorId, id string) (*InboxObject, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT id, author_id, kind, content_id, created_at
		FROM inbox_objects WHERE author_id=? AND id=?`, authorId, id)
	var res InboxObject
	err := row.Scan(&res.Id, &res.AuthorId, &res.Kind, &res.ContentId, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) DeleteInboxObject(authorId, id string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	res, err := repo.db.Exec(`DELETE FROM inbox_objects WHERE author_id=? AND id=?`, authorId, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf(shared.ErrNotFound, "inbox object %s does not exist", id)
	}
	return nil
}

// === Nodes ==============================================================

func (repo *Repo) UpsertNode(node *Node) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO nodes (name, host_url, username, password, inbox_username, inbox_password)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(host_url) DO UPDATE SET name=excluded.name, username=excluded.username,
		password=excluded.password, inbox_username=excluded.inbox_username,
		inbox_password=excluded.inbox_password`,
		node.Name, node.HostUrl, node.Username, node.Password, node.InboxUsername, node.InboxPassword)
	return err
}

const nodeCols = `id, name, host_url, username, password, inbox_username, inbox_password`

func (repo *Repo) GetNodes() ([]*Node, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT ` + nodeCols + ` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]*Node, 0)
	for rows.Next() {
		n := Node{}
		err = rows.Scan(&n.Id, &n.Name, &n.HostUrl, &n.Username, &n.Password,
			&n.InboxUsername, &n.InboxPassword)
		if err != nil {
			return nil, err
		}
		res = append(res, &n)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (repo *Repo) GetNode(id int64) (*Node, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT `+nodeCols+` FROM nodes WHERE id=?`, id)
	var res Node
	err := row.Scan(&res.Id, &res.Name, &res.HostUrl, &res.Username, &res.Password,
		&res.InboxUsername, &res.InboxPassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// === Posts ==============================================================

const postCols = `id, url, author_id, title, source, origin, description, content_type, content,
	published, visibility, unlisted, is_github`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var res Post
	err := row.Scan(&res.Id, &res.Url, &res.AuthorId, &res.Title, &res.Source, &res.Origin,
		&res.Description, &res.ContentType, &res.Content, &res.Published, &res.Visibility,
		&res.Unlisted, &res.IsGithub)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) AddPost(post *Post) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO posts
		(id, url, author_id, title, source, origin, description, content_type, content,
		published, visibility, unlisted, is_github)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.Id, post.Url, post.AuthorId, post.Title, post.Source, post.Origin, post.Description,
		post.ContentType, post.Content, post.Published, post.Visibility, post.Unlisted, post.IsGithub)
	if err != nil && isDuplicateKey(err) {
		return shared.Errorf(shared.ErrConflict, "post '%s' already exists", post.Id)
	}
	return err
}

func (repo *Repo) UpdatePost(post *Post) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`UPDATE posts SET url=?, title=?, source=?, origin=?, description=?,
		content_type=?, content=?, visibility=?, unlisted=? WHERE id=?`,
		post.Url, post.Title, post.Source, post.Origin, post.Description, post.ContentType,
		post.Content, post.Visibility, post.Unlisted, post.Id)
	return err
}

func (repo *Repo) GetPost(id string) (*Post, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT `+postCols+` FROM posts WHERE id=?`, id)
	res, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func (repo *Repo) DeletePost(id string) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	res, err := repo.db.Exec(`DELETE FROM posts WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.Errorf(shared.ErrNotFound, "post %s does not exist", id)
	}
	return nil
}

func (repo *Repo) GetPostsByAuthorPage(authorId string, offset, limit int) ([]*Post, int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	var total int
	row := repo.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE author_id=?`, authorId)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := repo.db.Query(`SELECT `+postCols+` FROM posts WHERE author_id=?
		ORDER BY published DESC LIMIT ? OFFSET ?`, authorId, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	res := make([]*Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// === Comments ===========================================================

func (repo *Repo) AddComment(comment *Comment) error {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	_, err := repo.db.Exec(`INSERT INTO comments (id, url, author_id, post_id, comment, content_type, published)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		comment.Id, comment.Url, comment.AuthorId, comment.PostId, comment.Comment,
		comment.ContentType, comment.Published)
	return err
}

func (repo *Repo) GetComment(id string) (*Comment, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT id, url, author_id, post_id, comment, content_type, published
		FROM comments WHERE id=?`, id)
	var res Comment
	err := row.Scan(&res.Id, &res.Url, &res.AuthorId, &res.PostId, &res.Comment,
		&res.ContentType, &res.Published)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) GetCommentsByPostPage(postId string, offset, limit int) ([]*Comment, int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	var total int
	row := repo.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE post_id=?`, postId)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := repo.db.Query(`SELECT id, url, author_id, post_id, comment, content_type, published
		FROM comments WHERE post_id=? ORDER BY published DESC LIMIT ? OFFSET ?`, postId, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	res := make([]*Comment, 0)
	for rows.Next() {
		c := Comment{}
		err = rows.Scan(&c.Id, &c.Url, &c.AuthorId, &c.PostId, &c.Comment, &c.ContentType, &c.Published)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (repo *Repo) CountComments(postId string) (int, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	var total int
	row := repo.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE post_id=?`, postId)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// === Likes ==============================================================

func (repo *Repo) AddLikeIfNew(like *Like) (isNew bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	isNew = true
	_, err = repo.db.Exec(`INSERT INTO likes (id, author_id, summary, object, object_hash)
		VALUES(?, ?, ?, ?, ?)`,
		like.Id, like.AuthorId, like.Summary, like.Object, like.ObjectHash)
	if err == nil {
		return
	}
	// Duplicate key: this author already liked this object
	if isDuplicateKey(err) {
		isNew = false
		err = nil
	}
	return
}

func (repo *Repo) GetLike(id string) (*Like, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	row := repo.db.QueryRow(`SELECT id, author_id, summary, object, object_hash FROM likes WHERE id=?`, id)
	var res Like
	err := row.Scan(&res.Id, &res.AuthorId, &res.Summary, &res.Object, &res.ObjectHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (repo *Repo) GetLikesForObject(objectUrl string) ([]*Like, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, author_id, summary, object, object_hash
		FROM likes WHERE object=?`, objectUrl)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readLikes(rows)
}

func (repo *Repo) GetLikesByAuthor(authorId string) ([]*Like, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, author_id, summary, object, object_hash
		FROM likes WHERE author_id=?`, authorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readLikes(rows)
}

func readLikes(rows *sql.Rows) ([]*Like, error) {
	res := make([]*Like, 0)
	for rows.Next() {
		l := Like{}
		err := rows.Scan(&l.Id, &l.AuthorId, &l.Summary, &l.Object, &l.ObjectHash)
		if err != nil {
			return nil, err
		}
		res = append(res, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// === GitHub events ======================================================

func (repo *Repo) AddGithubEventIfNew(ev *GithubEvent) (isNew bool, err error) {

	repo.muDb.Lock()
	defer repo.muDb.Unlock()

	isNew = true
	_, err = repo.db.Exec(`INSERT INTO github_events
		(id, type, username, url, event_title, event_content, time)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		ev.Id, ev.Type, ev.Username, ev.Url, ev.EventTitle, ev.EventContent, ev.Time)
	if err == nil {
		return
	}
	// Duplicate key: event was cached before
	if isDuplicateKey(err) {
		isNew = false
		err = nil
	}
	return
}

func (repo *Repo) GetGithubEventsByUsername(username string) ([]*GithubEvent, error) {

	repo.muDb.RLock()
	defer repo.muDb.RUnlock()

	rows, err := repo.db.Query(`SELECT id, type, username, url, event_title, event_content, time
		FROM github_events WHERE username=? ORDER BY time DESC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]*GithubEvent, 0)
	for rows.Next() {
		ev := GithubEvent{}
		err = rows.Scan(&ev.Id, &ev.Type, &ev.Username, &ev.Url, &ev.EventTitle, &ev.EventContent, &ev.Time)
		if err != nil {
			return nil, err
		}
		res = append(res, &ev)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func prefixCols(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
