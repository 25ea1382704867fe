package snapshot_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/seriesdb/internal/catalog"
	"github.com/shelfmark/seriesdb/internal/catalog/dump"
	"github.com/shelfmark/seriesdb/internal/catalog/snapshot"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// A miniature export: one parent series with two children, one of them with
// eligible titles, plus authors and editions, plus rows every filter should
// reject (wrong type, variant title, non-primary language, excluded title).
const testExport = "CREATE TABLE `series` (x int);\n" +
	"INSERT INTO `series` VALUES " +
	"(1,'The Cosmere',NULL,NULL,NULL,NULL)," +
	"(2,'Mistborn',1,NULL,1,NULL)," +
	"(3,'Wax and Wayne',2,NULL,NULL,NULL)," +
	"(4,'Unrelated Saga',0,NULL,NULL,NULL)," +
	// "Éternité" in the export's latin1 encoding.
	"(5,'\xc9ternit\xe9',0,NULL,NULL,NULL);\n" +
	"INSERT INTO `titles` VALUES " +
	"(10,'The Final Empire',NULL,NULL,NULL,2,'1','2006-07-17',NULL,'NOVEL',NULL,0,0,NULL,0,0,17,NULL,NULL,NULL,NULL,NULL,0)," +
	"(11,'The Well of Ascension',NULL,NULL,NULL,2,'2','2007-08-21',NULL,'NOVEL',NULL,0,NULL,NULL,0,0,NULL,NULL,NULL,NULL,NULL,NULL,0)," +
	"(12,'The Final Empire (excerpt)',NULL,NULL,NULL,2,NULL,'2006-00-00',NULL,'SHORTFICTION',NULL,0,0,NULL,0,0,17,NULL,NULL,NULL,NULL,NULL,0)," +
	"(13,'L\\'Empire Ultime',NULL,NULL,NULL,2,'1','2009-00-00',NULL,'NOVEL',NULL,0,10,NULL,0,0,3,NULL,NULL,NULL,NULL,NULL,0)," +
	"(14,'Mistborn Omnibus',NULL,NULL,NULL,2,NULL,'2010-00-00',NULL,'OMNIBUS',NULL,0,0,NULL,0,0,17,NULL,NULL,NULL,NULL,NULL,0)," +
	"(15,'The Alloy of Law',NULL,NULL,NULL,3,'1','2011-11-08',NULL,'NOVEL',NULL,0,0,NULL,0,0,17,NULL,NULL,NULL,NULL,NULL,0);\n" +
	"INSERT INTO `canonical_author` VALUES (100,10,7,1),(101,11,7,1),(102,15,7,1);\n" +
	"INSERT INTO `authors` VALUES " +
	"(7,'Brandon Sanderson',NULL,NULL,NULL,NULL,NULL,NULL,0,NULL,NULL,NULL,0,'Sanderson',17,NULL);\n" +
	"INSERT INTO `pub_content` VALUES (200,10,50,NULL),(201,10,51,NULL),(202,15,52,NULL);\n" +
	"INSERT INTO `pubs` VALUES " +
	"(50,'The Final Empire',NULL,'2006-07-17',1,'541','pb',NULL,'0765311781','http://img/50.jpg','$7.99',NULL,NULL,NULL,NULL)," +
	"(51,'The Final Empire',NULL,'2006-07-17',1,'544','hc',NULL,'9780765311788','http://img/51.jpg','$27.99',NULL,NULL,NULL,NULL)," +
	"(52,'The Alloy of Law',NULL,'2011-11-08',1,'336','hc',NULL,'9780765330420','http://img/52.jpg','$24.99',NULL,NULL,NULL,NULL);\n"

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.sql")
	require.NoError(t, os.WriteFile(path, []byte(testExport), 0o644))
	return path
}

func openBackends(t *testing.T) (raw, indexed catalog.Backend) {
	t.Helper()
	ctx := context.Background()
	exportPath := writeExport(t)

	dbPath := filepath.Join(t.TempDir(), "snapshot.db")
	counts, err := snapshot.CreateSnapshot(ctx, exportPath, dbPath, discardLogger())
	require.NoError(t, err)
	require.Equal(t, int64(5), counts[dump.TableSeries])
	require.Equal(t, int64(6), counts[dump.TableTitles])

	snap, err := snapshot.Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })

	return dump.NewBackend(exportPath), snap
}

func TestBackendParity(t *testing.T) {
	ctx := context.Background()
	raw, indexed := openBackends(t)
	backends := map[string]catalog.Backend{"dump": raw, "snapshot": indexed}

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			byName, err := b.FindSeriesByName(ctx, []string{"mistborn", "ÉTERNITÉ", "No Such Series"})
			require.NoError(t, err)
			require.Len(t, byName, 2)
			ref := byName["mistborn"] // original casing preserved in keys
			assert.Equal(t, int64(2), ref.ID)
			assert.Equal(t, "Mistborn", ref.Title)
			require.NotNil(t, ref.ParentID)
			assert.Equal(t, int64(1), *ref.ParentID)
			// Case folding is Unicode-aware in both backends.
			assert.Equal(t, int64(5), byName["ÉTERNITÉ"].ID)

			byID, err := b.FindSeriesByID(ctx, []int64{1, 4, 999})
			require.NoError(t, err)
			require.Len(t, byID, 2)
			assert.Equal(t, "The Cosmere", byID[1].Title)
			// Parent id 0 means no parent, same as NULL.
			assert.Nil(t, byID[4].ParentID)

			children, err := b.FindChildSeries(ctx, []int64{1, 2})
			require.NoError(t, err)
			require.Len(t, children[1], 1)
			assert.Equal(t, int64(2), children[1][0].ID)
			require.Len(t, children[2], 1)
			assert.Equal(t, int64(3), children[2][0].ID)

			titles, err := b.FindTitles(ctx, []int64{2, 3})
			require.NoError(t, err)
			// Of series 2's five titles only two survive: the excerpt, the
			// variant-parent translation and the omnibus are all filtered.
			require.Len(t, titles[2], 2)
			gotIDs := []int64{titles[2][0].ID, titles[2][1].ID}
			assert.ElementsMatch(t, []int64{10, 11}, gotIDs)
			require.Len(t, titles[3], 1)
			assert.Equal(t, int64(15), titles[3][0].ID)

			authors, err := b.FindTitleAuthors(ctx, []int64{10, 11, 15})
			require.NoError(t, err)
			assert.Equal(t, map[int64]int64{10: 7, 11: 7, 15: 7}, authors)

			names, err := b.FindAuthorNames(ctx, []int64{7, 999})
			require.NoError(t, err)
			assert.Equal(t, map[int64]string{7: "Brandon Sanderson"}, names)

			editions, err := b.FindEditions(ctx, []int64{10, 11, 15})
			require.NoError(t, err)
			require.Len(t, editions, 2) // title 11 has no editions
			// Title 10 has a pb and an hc, both with codes; hc outranks.
			assert.Equal(t, int64(51), editions[10].ID)
			assert.Equal(t, int64(10), editions[10].TitleID)
			require.NotNil(t, editions[10].ISBN)
			assert.Equal(t, "9780765311788", *editions[10].ISBN)
			assert.Equal(t, int64(52), editions[15].ID)
		})
	}
}

func TestSnapshotRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	exportPath := writeExport(t)
	dbPath := filepath.Join(t.TempDir(), "snapshot.db")

	_, err := snapshot.CreateSnapshot(ctx, exportPath, dbPath, discardLogger())
	require.NoError(t, err)
	counts, err := snapshot.CreateSnapshot(ctx, exportPath, dbPath, discardLogger())
	require.NoError(t, err)

	// Second pass inserts nothing new: every row hits OR IGNORE.
	assert.Equal(t, int64(0), counts[dump.TableSeries])
}
