package main

import (
	"github.com/FranksOps/reelcheck/internal/query"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bind ties a flag to a config key. Only flags set on the command line
// override the config file and environment.
func bind(v *viper.Viper, f *pflag.Flag, key string) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// queryFlags are the filter and sort options shared by check and results.
type queryFlags struct {
	status   string
	contains string
	sort     string
	desc     bool
}

func (q *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&q.status, "status", "all", "keep only all, has-video, no-video or error results")
	fs.StringVar(&q.contains, "contains", "", "keep only URLs containing this text (case-insensitive)")
	fs.StringVar(&q.sort, "sort", "", "sort by url, has_video, status, method, timestamp, playback, video_tags, iframes, youtube or snippet")
	fs.BoolVar(&q.desc, "desc", false, "sort descending")
}

func (q *queryFlags) query() (query.Query, error) {
	status, err := query.ParseStatusFilter(q.status)
	if err != nil {
		return query.Query{}, err
	}
	key, err := query.ParseSortKey(q.sort)
	if err != nil {
		return query.Query{}, err
	}
	return query.Query{Status: status, URLContains: q.contains, Sort: key, Desc: q.desc}, nil
}
