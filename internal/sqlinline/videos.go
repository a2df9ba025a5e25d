package sqlinline

const QInsertVideoRecord = `--sql 792cde1f-e3a7-4bbc-873d-fa3f2e75d2ae
insert into generated_videos (user_id, prompt, model, video_url, is_intermediate, session_id, duration)
values ($1::text, $2::text, $3::text, $4::text, $5::boolean, nullif($6::text, ''), nullif($7::int, 0))
returning id::text, created_at;
`

const QDeleteVideoRecords = `--sql c805e852-0905-446d-bc0d-78c87ef9d3cb
delete from generated_videos
where id = any($1::text[]::uuid[]);
`

const QListVideoRecordsByUser = `--sql 203f97fb-3e62-422a-acac-31c54d42fbaf
select
    id::text,
    user_id,
    prompt,
    model,
    video_url,
    created_at,
    is_intermediate,
    coalesce(session_id, ''),
    coalesce(duration, 0)
from generated_videos
where user_id = $1::text
  and is_intermediate = false
order by created_at desc
limit $2::int;
`
