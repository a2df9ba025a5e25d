package sqlinline

const QWorkerClaimChainJob = `--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db
with next_job as (
    select id
    from chain_jobs
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update chain_jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id::text, user_id, status, payload_json, progress, last_message,
        coalesce(video_url, ''), coalesce(error_message, ''), created_at, updated_at
)
select * from updated;
`

const QEnqueueChainJob = `--sql dab337fe-d38c-4fe1-9c35-5c9bfc97f9d6
insert into chain_jobs (user_id, status, payload_json)
values ($1::text, 'QUEUED', $2::jsonb)
returning id::text, user_id, status, payload_json, progress, last_message,
    coalesce(video_url, ''), coalesce(error_message, ''), created_at, updated_at;
`

const QUpdateChainJobProgress = `--sql 662769fb-798f-45f6-9392-8f0a577d72de
update chain_jobs
set progress = greatest(progress, $2::double precision),
    last_message = $3::text,
    updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QCompleteChainJob = `--sql ce192d3a-7e59-48fa-be24-acb0e38f2c03
update chain_jobs
set status = 'SUCCEEDED',
    progress = 100,
    video_url = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QFailChainJob = `--sql d5ed11c4-103f-443c-a774-93cf0f6f3a9c
update chain_jobs
set status = 'FAILED',
    error_message = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectChainJobForUser = `--sql bbda3c6f-ae8e-4696-970a-5ceab5af48bd
select id::text, user_id, status, payload_json, progress, last_message,
    coalesce(video_url, ''), coalesce(error_message, ''), created_at, updated_at
from chain_jobs
where id = $1::uuid
  and user_id = $2::text;
`
