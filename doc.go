/*
Package tripwire is a keyword moderation bot for Telegram group chats.

Group owners maintain a list of keywords through chat commands. Members who
join with a name containing one of the keywords are removed when auto-kick is
enabled. The keyword list lives in memory and can be pushed to a remote
deployment configuration (a Vercel environment variable followed by a
redeploy) with /savekeywords, so it survives restarts.

# Commands

	/help, /start    usage
	/about           what the bot does
	/keywords        list keywords
	/kwadd kw...     add keywords (owners only)
	/kwdel kw...     remove keywords (owners only)
	/kwclear         remove every keyword (owners only)
	/autokick        toggle auto-kick (owners only)
	/savekeywords    persist keywords and redeploy (owners only)

# Usage

A Bot is assembled from a keyword store and the chat ports, then fed the
events decoded from webhook updates:

	store := keywords.NewStore(cfg.Keywords, keywords.WithAutoKick(cfg.AutoKick))
	tg := telegram.NewClient(cfg.Telegram.Token)

	bot := tripwire.New(store, tg,
		tripwire.WithRemover(tg),
		tripwire.WithPolicy(access.NewPolicy(cfg.Owners...)),
		tripwire.WithSyncer(vercel.NewClient(cfg.Vercel.Token, cfg.Vercel.ProjectID)),
	)

	http.ListenAndServe(":8000", httpAdapter.NewHandler(bot))

Local keyword changes are never rolled back when a sync fails; the store
reports Dirty or SyncFailed until the next successful /savekeywords.
*/
package tripwire
