package cmd

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestAnalyzeInputSelection(t *testing.T) {
	convey.Convey("Given no CSV argument and no database source", t, func() {
		err := runAnalyze(analyzeCmd, nil)

		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "--from-postgres")
	})

	convey.Convey("Given --from-postgres without a configured DSN", t, func() {
		convey.So(analyzeCmd.Flags().Set("from-postgres", "true"), convey.ShouldBeNil)
		defer analyzeCmd.Flags().Set("from-postgres", "false")

		err := runAnalyze(analyzeCmd, nil)

		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "postgres_dsn")
	})
}

func TestRepositoryFlags(t *testing.T) {
	convey.Convey("analyze takes a date window for database loads", t, func() {
		convey.So(analyzeCmd.Flags().Lookup("last-days"), convey.ShouldNotBeNil)
	})

	convey.Convey("generate can reset the orders table before seeding", t, func() {
		convey.So(generateCmd.Flags().Lookup("truncate"), convey.ShouldNotBeNil)
	})
}
