package dao_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/dao"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/models"
)

type storeFactory func(t *testing.T) dao.Store

// backends returns every store the contract runs against. Redis joins only
// when PEOPLE_TEST_REDIS_ADDR points at a server.
func backends() map[dao.Kind]storeFactory {
	b := map[dao.Kind]storeFactory{
		dao.KindList: func(*testing.T) dao.Store { return dao.NewListStore() },
		dao.KindMap:  func(*testing.T) dao.Store { return dao.NewMapStore() },
		dao.KindFile: func(t *testing.T) dao.Store {
			dir := t.TempDir()
			s, err := dao.NewFileStore(filepath.Join(dir, "people.tsv"), filepath.Join(dir, "photos"))
			require.NoError(t, err)
			return s
		},
		dao.KindSerial: func(t *testing.T) dao.Store {
			s, err := dao.NewSerialStore(filepath.Join(t.TempDir(), "people.yaml"))
			require.NoError(t, err)
			return s
		},
		dao.KindSQL: func(t *testing.T) dao.Store {
			return openTestStore(t, dao.KindSQL)
		},
		dao.KindORM: func(t *testing.T) dao.Store {
			return openTestStore(t, dao.KindORM)
		},
	}
	if addr := os.Getenv("PEOPLE_TEST_REDIS_ADDR"); addr != "" {
		b[dao.KindRedis] = func(t *testing.T) dao.Store {
			return openTestStore(t, dao.KindRedis)
		}
	}
	return b
}

func testOptions(t *testing.T) dao.Options {
	t.Helper()
	dir := t.TempDir()
	return dao.Options{
		DataDir: dir,
		SQL: config.Database{
			Driver:       "sqlite3",
			Name:         filepath.Join(dir, "people.db"),
			MaxOpenConns: 1,
		},
		ORM: config.Database{
			Driver:       "sqlite3",
			Name:         filepath.Join(dir, "people_orm.db"),
			MaxOpenConns: 1,
		},
		Redis: config.Redis{
			Addr: os.Getenv("PEOPLE_TEST_REDIS_ADDR"),
			Key:  "people-test-" + filepath.Base(dir),
		},
	}
}

func openTestStore(t *testing.T, kind dao.Kind) dao.Store {
	t.Helper()
	ctx := context.Background()
	opts := testOptions(t)
	if kind == dao.KindSQL {
		require.NoError(t, db.Bootstrap(ctx, opts.SQL, nil))
	}
	s, err := dao.Open(ctx, kind, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		if kind == dao.KindRedis {
			_ = s.DeleteAll(ctx)
		}
		_ = s.Close()
	})
	return s
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fullPerson() *models.Person {
	return &models.Person{
		NIF:         "12345678Z",
		Name:        "Ann Smith",
		DateOfBirth: date(1990, time.May, 17),
		Photo:       []byte{0x89, 'P', 'N', 'G', 0, 1, 2},
		Email:       "ann@example.com",
		PhoneNumber: "+34612345678",
		PostalCode:  "28001",
	}
}

// assertSamePerson compares every field, dates by instant.
func assertSamePerson(t *testing.T, want, got *models.Person) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.NIF, got.NIF)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.PhoneNumber, got.PhoneNumber)
	assert.Equal(t, want.PostalCode, got.PostalCode)
	if len(want.Photo) == 0 {
		assert.Empty(t, got.Photo)
	} else {
		assert.Equal(t, want.Photo, got.Photo)
	}
	if want.DateOfBirth == nil {
		assert.Nil(t, got.DateOfBirth)
	} else {
		require.NotNil(t, got.DateOfBirth)
		assert.True(t, want.DateOfBirth.Equal(*got.DateOfBirth), "date of birth: want %s got %s", want.DateOfBirth, got.DateOfBirth)
	}
}

func nifs(people []*models.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.NIF
	}
	return out
}

func TestStoreContract(t *testing.T) {
	for kind, factory := range backends() {
		t.Run(string(kind), func(t *testing.T) {
			t.Run("insert then read", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				want := fullPerson()
				require.NoError(t, s.Insert(ctx, want))

				got, err := s.Read(ctx, want.NIF)
				require.NoError(t, err)
				assertSamePerson(t, want, got)
			})

			t.Run("optional fields stay empty", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				want := &models.Person{NIF: "87654321X"}
				require.NoError(t, s.Insert(ctx, want))

				got, err := s.Read(ctx, want.NIF)
				require.NoError(t, err)
				assertSamePerson(t, want, got)
			})

			t.Run("read absent", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				got, err := s.Read(ctx, "00000000T")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("duplicate insert keeps stored record", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, fullPerson()))

				other := &models.Person{NIF: "12345678Z", Name: "Impostor"}
				assert.ErrorIs(t, s.Insert(ctx, other), dao.ErrDuplicate)

				got, err := s.Read(ctx, "12345678Z")
				require.NoError(t, err)
				assertSamePerson(t, fullPerson(), got)
			})

			t.Run("update replaces every field", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, fullPerson()))

				want := &models.Person{NIF: "12345678Z", Name: "Anna", PostalCode: "08001"}
				require.NoError(t, s.Update(ctx, want))

				got, err := s.Read(ctx, "12345678Z")
				require.NoError(t, err)
				assertSamePerson(t, want, got)
			})

			t.Run("update absent", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				assert.ErrorIs(t, s.Update(ctx, fullPerson()), dao.ErrNotFound)

				all, err := s.ReadAll(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)
			})

			t.Run("delete", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, fullPerson()))
				require.NoError(t, s.Insert(ctx, &models.Person{NIF: "87654321X"}))

				require.NoError(t, s.Delete(ctx, "12345678Z"))
				require.NoError(t, s.Delete(ctx, "12345678Z"))

				all, err := s.ReadAll(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"87654321X"}, nifs(all))
			})

			t.Run("delete all", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, fullPerson()))
				require.NoError(t, s.Insert(ctx, &models.Person{NIF: "87654321X"}))

				require.NoError(t, s.DeleteAll(ctx))
				all, err := s.ReadAll(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)

				require.NoError(t, s.Insert(ctx, fullPerson()))
			})

			t.Run("ann becomes anna", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, &models.Person{NIF: "12345678Z", Name: "Ann"}))
				require.NoError(t, s.Update(ctx, &models.Person{NIF: "12345678Z", Name: "Anna"}))

				all, err := s.ReadAll(ctx)
				require.NoError(t, err)
				require.Len(t, all, 1)
				assert.Equal(t, "Anna", all[0].Name)

				got, err := s.Read(ctx, "12345678Z")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, "12345678Z", got.NIF)
				assert.Equal(t, "Anna", got.Name)
			})

			t.Run("returned values are not shared", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				in := fullPerson()
				require.NoError(t, s.Insert(ctx, in))
				in.Name = "Changed"
				in.Photo[0] = 0

				got, err := s.Read(ctx, in.NIF)
				require.NoError(t, err)
				assertSamePerson(t, fullPerson(), got)
			})

			t.Run("count", func(t *testing.T) {
				s, ctx := factory(t), context.Background()
				require.NoError(t, s.Insert(ctx, fullPerson()))
				require.NoError(t, s.Insert(ctx, &models.Person{NIF: "87654321X"}))

				n, err := dao.Instrument(s, kind, nil, nil).Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, n)
			})
		})
	}
}

func TestSortedBackendsOrderByNIF(t *testing.T) {
	for _, kind := range []dao.Kind{dao.KindMap, dao.KindSQL, dao.KindORM} {
		t.Run(string(kind), func(t *testing.T) {
			s, ctx := backends()[kind](t), context.Background()
			for _, nif := range []string{"87654321X", "00000001R", "12345678Z"} {
				require.NoError(t, s.Insert(ctx, &models.Person{NIF: nif}))
			}
			all, err := s.ReadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"00000001R", "12345678Z", "87654321X"}, nifs(all))
		})
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := dao.Open(context.Background(), dao.Kind("tape"), dao.Options{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, dao.ErrUnknownKind)
}

func TestOpen_Layout(t *testing.T) {
	opts := dao.Options{DataDir: "data"}
	data, photos := opts.FilePaths()
	assert.Equal(t, filepath.Join("data", "file", "people.tsv"), data)
	assert.Equal(t, filepath.Join("data", "file", "photos"), photos)
	assert.Equal(t, filepath.Join("data", "serial", "people.yaml"), opts.SerialPath())
	assert.Equal(t, filepath.Join("data", "sql", "photos"), opts.SQLPhotoDir())
}

func TestParseKind(t *testing.T) {
	for _, k := range dao.Kinds() {
		got, err := dao.ParseKind(" " + string(k) + " ")
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := dao.ParseKind("SQL")
	require.NoError(t, err)
	assert.Equal(t, dao.KindSQL, got)

	_, err = dao.ParseKind("xml")
	assert.ErrorIs(t, err, dao.ErrUnknownKind)
}
