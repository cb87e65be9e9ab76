package gormcontract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

type product struct {
	ID    uint   `gorm:"primaryKey"`
	SKU   string `check:"notblank; pattern('^[A-Z]{3}-[0-9]+$')"`
	Price int    `check:"min(1)"`
	Note  string `check:"notblank(profiles=audit)"`
}

// Note 属于 audit profile，默认全部 profile 启用，因此普通用例都填写 Note
func openDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&product{}))

	v, err := validator.New()
	require.NoError(t, err)
	require.NoError(t, db.Use(New(v, opts...)))
	return db
}

func count(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&product{}).Count(&n).Error)
	return n
}

func TestCreate(t *testing.T) {
	db := openDB(t)

	tests := []struct {
		name    string
		product product
		checks  []string
	}{
		{"合法", product{SKU: "ABC-1", Price: 10, Note: "n"}, nil},
		{"SKU 为空", product{SKU: "", Price: 10, Note: "n"}, []string{"notblank", "pattern"}},
		{"SKU 格式", product{SKU: "abc", Price: 10, Note: "n"}, []string{"pattern"}},
		{"价格", product{SKU: "ABC-2", Price: 0, Note: "n"}, []string{"min"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Create(&tt.product).Error
			if tt.checks == nil {
				require.NoError(t, err)
				assert.NotZero(t, tt.product.ID)
				return
			}
			var cve *core.ConstraintsViolatedError
			require.True(t, errors.As(err, &cve), "%v", err)
			got := make([]string, len(cve.Violations))
			for i, v := range cve.Violations {
				got[i] = v.CheckName
			}
			assert.Equal(t, tt.checks, got)
		})
	}
	assert.Equal(t, int64(1), count(t, db), "只有合法记录写入")
}

func TestCreateBatch(t *testing.T) {
	db := openDB(t)

	batch := []product{{SKU: "ABC-1", Price: 1}, {SKU: "bad", Price: 1}}
	err := db.Create(&batch).Error
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))
	assert.Zero(t, count(t, db))
}

func TestSaveAndUpdates(t *testing.T) {
	db := openDB(t)
	p := product{SKU: "ABC-1", Price: 5, Note: "n"}
	require.NoError(t, db.Create(&p).Error)

	p.Price = -1
	err := db.Save(&p).Error
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))

	var stored product
	require.NoError(t, db.First(&stored, p.ID).Error)
	assert.Equal(t, 5, stored.Price)

	// map 形式的更新没有结构体可校验
	require.NoError(t, db.Model(&stored).Updates(map[string]any{"price": 7}).Error)
	require.NoError(t, db.First(&stored, p.ID).Error)
	assert.Equal(t, 7, stored.Price)
}

func TestSkipAndProfiles(t *testing.T) {
	db := openDB(t, WithCreateProfiles("default", "audit"))

	err := db.Create(&product{SKU: "ABC-1", Price: 1}).Error
	var cve *core.ConstraintsViolatedError
	require.True(t, errors.As(err, &cve))
	assert.Equal(t, "notblank", cve.First().CheckName)

	require.NoError(t, db.Set(ProfilesKey, []string{"default"}).Create(&product{SKU: "ABC-2", Price: 1}).Error)
	require.NoError(t, db.Set(SkipKey, true).Create(&product{SKU: "", Price: 0}).Error)
	assert.Equal(t, int64(2), count(t, db))
}

func TestValidatable(t *testing.T) {
	tests := []struct {
		name string
		dest any
		want bool
	}{
		{"nil", nil, false},
		{"结构体指针", &product{}, true},
		{"切片", &[]product{}, true},
		{"指针切片", []*product{}, true},
		{"map", map[string]any{"price": 1}, false},
		{"空指针", (*product)(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validatable(tt.dest))
		})
	}
}

func TestPluginName(t *testing.T) {
	assert.Equal(t, PluginName, New(nil).Name())
}
