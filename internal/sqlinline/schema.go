package sqlinline

// Schema statements are idempotent and run in order at startup.
var Schema = []string{
	QCreateGeneratedVideos,
	QCreateGeneratedVideosSessionIndex,
	QCreateGeneratedVideosUserIndex,
	QCreateChainJobs,
	QCreateChainJobsQueueIndex,
	QCreateIntegrationTokens,
}

const QCreateGeneratedVideos = `--sql 4526a4c9-5688-4d2c-a252-7d3c10d3e5fc
create table if not exists generated_videos (
    id uuid primary key default gen_random_uuid(),
    user_id text not null,
    prompt text not null,
    model text not null,
    video_url text not null,
    created_at timestamptz not null default now(),
    is_intermediate boolean not null default false,
    session_id text,
    duration int
);
`

const QCreateGeneratedVideosSessionIndex = `--sql 008af5b3-7d82-487c-8e8a-2f15517ffcd4
create index if not exists generated_videos_session_idx
    on generated_videos (session_id)
    where is_intermediate;
`

const QCreateGeneratedVideosUserIndex = `--sql 5f5dddaf-9a6e-455f-bf28-c77da7bed6a6
create index if not exists generated_videos_user_idx
    on generated_videos (user_id, created_at desc);
`

const QCreateChainJobs = `--sql ab247070-7903-4304-9287-6d1039e30810
create table if not exists chain_jobs (
    id uuid primary key default gen_random_uuid(),
    user_id text not null,
    status text not null,
    payload_json jsonb not null,
    progress double precision not null default 0,
    last_message text not null default '',
    video_url text,
    error_message text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateChainJobsQueueIndex = `--sql b9aa810e-6633-42aa-a31f-e8d659cf6a88
create index if not exists chain_jobs_queue_idx
    on chain_jobs (created_at)
    where status = 'QUEUED';
`

const QCreateIntegrationTokens = `--sql 12f335f0-19a7-4519-a9e7-fa539ad23b5d
create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
