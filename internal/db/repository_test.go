package db

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"sketchbook/internal/game"
)

func startPostgres(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sketchbook"),
		postgres.WithUsername("sketchbook"),
		postgres.WithPassword("sketchbook"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dsn, "../../db/migrations"))

	conn, err := Open(dsn, PoolConfig{MaxOpenConns: 5})
	require.NoError(t, err)
	return NewRepository(conn)
}

func newBook(roomID, owner string, round int) (*game.SketchBook, *game.Page) {
	return &game.SketchBook{RoomID: roomID, OwnerName: owner, PromptText: "cat", Round: round},
		&game.Page{PageNumber: 1, PageType: game.PagePrompt, Content: "cat", AuthorName: owner}
}

func TestRepository(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	t.Run("CreateBookWithPromptPage", func(t *testing.T) {
		book, page := newBook("r1", "ann", 1)
		require.NoError(t, repo.CreateBook(ctx, book, page))
		assert.NotZero(t, book.ID)
		assert.Equal(t, book.ID, page.SketchBookID)

		got, err := repo.Book(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.PageCount)
		assert.Equal(t, "ann", got.OwnerName)
	})

	t.Run("DuplicatePageRejected", func(t *testing.T) {
		book, page := newBook("r2", "bob", 1)
		require.NoError(t, repo.CreateBook(ctx, book, page))

		sketch := &game.Page{SketchBookID: book.ID, PageNumber: 2, PageType: game.PageSketch, Image: []byte{1, 2, 3}, AuthorName: "bob"}
		require.NoError(t, repo.AddPage(ctx, sketch))
		again := &game.Page{SketchBookID: book.ID, PageNumber: 2, PageType: game.PageSketch, Image: []byte{9}, AuthorName: "bob"}
		err := repo.AddPage(ctx, again)
		assert.ErrorIs(t, err, game.ErrDuplicatePage)
		assert.ErrorIs(t, err, game.ErrConflict)

		pages, err := repo.Pages(ctx, book.ID)
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Equal(t, []byte{1, 2, 3}, pages[1].Image)

		ok, err := repo.HasPage(ctx, book.ID, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.HasPage(ctx, book.ID, 3)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConcurrentDuplicatePages", func(t *testing.T) {
		book, page := newBook("r3", "cid", 1)
		require.NoError(t, repo.CreateBook(ctx, book, page))

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.AddPage(ctx, &game.Page{SketchBookID: book.ID, PageNumber: 2, PageType: game.PageText, Content: "x", AuthorName: "cid"})
			}(i)
		}
		wg.Wait()
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, game.ErrDuplicatePage)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("WithinTxRollsBack", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx game.Books) error {
			book, page := newBook("r4", "dee", 1)
			if err := tx.CreateBook(ctx, book, page); err != nil {
				return err
			}
			return game.ErrNotEnoughCards
		})
		assert.ErrorIs(t, err, game.ErrDataIntegrity)

		books, err := repo.BooksForRound(ctx, "r4", 1)
		require.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("MarkCompletedAndResults", func(t *testing.T) {
		for _, owner := range []string{"ann", "bob"} {
			book, page := newBook("r5", owner, 1)
			require.NoError(t, repo.CreateBook(ctx, book, page))
		}
		book, page := newBook("r5", "ann", 2)
		require.NoError(t, repo.CreateBook(ctx, book, page))

		require.NoError(t, repo.MarkCompleted(ctx, "r5", 1))
		done, err := repo.CompletedBooks(ctx, "r5")
		require.NoError(t, err)
		require.Len(t, done, 2)
		for _, b := range done {
			assert.True(t, b.Completed)
			assert.Equal(t, 1, b.Round)
		}
	})

	t.Run("DeleteRound", func(t *testing.T) {
		var ids []uint
		for _, owner := range []string{"ann", "bob"} {
			book, page := newBook("r7", owner, 1)
			require.NoError(t, repo.CreateBook(ctx, book, page))
			ids = append(ids, book.ID)
		}
		keep, page := newBook("r7", "ann", 2)
		require.NoError(t, repo.CreateBook(ctx, keep, page))

		removed, err := repo.DeleteRound(ctx, "r7", 1)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		books, err := repo.BooksForRound(ctx, "r7", 1)
		require.NoError(t, err)
		assert.Empty(t, books)
		_, err = repo.Pages(ctx, ids[0])
		assert.ErrorIs(t, err, game.ErrNotFound)
		books, err = repo.BooksForRound(ctx, "r7", 2)
		require.NoError(t, err)
		assert.Len(t, books, 1)

		removed, err = repo.DeleteRound(ctx, "r7", 1)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("BookNotFound", func(t *testing.T) {
		_, err := repo.Book(ctx, 999999)
		assert.ErrorIs(t, err, game.ErrBookNotFound)
		_, err = repo.Pages(ctx, 999999)
		assert.ErrorIs(t, err, game.ErrNotFound)
	})

	t.Run("Catalog", func(t *testing.T) {
		prompts := []Prompt{
			{CardNum: 2, Order: 1, Word: "robot"},
			{CardNum: 1, Order: 3, Word: "FREE:animals"},
			{CardNum: 1, Order: 1, Word: "cat"},
		}
		require.NoError(t, repo.conn.Create(&prompts).Error)

		cards, err := repo.CardNumbers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, cards)

		prompt, err := repo.PromptAt(ctx, 1, 3)
		require.NoError(t, err)
		free, genre := prompt.FreeInput()
		assert.True(t, free)
		assert.Equal(t, "animals", genre)

		_, err = repo.PromptAt(ctx, 1, 6)
		assert.ErrorIs(t, err, game.ErrPromptNotFound)

		card, err := repo.Card(ctx, 1)
		require.NoError(t, err)
		require.Len(t, card, 2)
		assert.Equal(t, "cat", card[0].Word)
	})

	t.Run("Journal", func(t *testing.T) {
		require.NoError(t, repo.Record(ctx, "r6", "room_created", map[string]any{"member_limit": 4}))
		require.NoError(t, repo.Record(ctx, "r6", "player_joined", nil))
		entries, err := repo.Entries(ctx, "r6")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "room_created", entries[0].Type)
		assert.EqualValues(t, 4, entries[0].Payload["member_limit"])
		assert.Empty(t, entries[1].Payload)
	})
}
